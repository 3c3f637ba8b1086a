package automation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"chatrelay/internal/chat"
)

func TestRules_Respond(t *testing.T) {
	r := NewRules()
	r.now = func() time.Time { return time.Date(2026, 1, 2, 9, 30, 0, 0, time.UTC) }

	tests := []struct {
		in   string
		want string
	}{
		{"Bom dia!", "Oi! 😊 Conte comigo para informações sobre vales, benefícios e suporte."},
		{"saldo do vale transporte", "Você pode consultar seu saldo de vale-transporte pelo aplicativo oficial ou pelo portal do colaborador."},
		{"meu CARTÃO travou", "Se o seu cartão apresentar problemas, recomendo tentar reaproximar após alguns minutos. Caso persista, posso orientar como solicitar um novo."},
		{"valeu", "De nada! Se precisar de algo mais é só chamar."},
		{"qual o horário?", "Nosso atendimento humano funciona das 8h às 18h em dias úteis."},
		{"   ", "Não entendi sua mensagem. Pode tentar novamente?"},
		{"preciso de ajuda", "Recebi sua mensagem às 09:30. Em instantes um de nossos atendentes virtuais retorna com mais detalhes!"},
	}

	for _, tt := range tests {
		reply, ok := r.Respond(context.Background(), chat.Inbound{Key: testKey, Text: tt.in})
		assert.True(t, ok, tt.in)
		assert.Equal(t, tt.want, reply.Text, tt.in)
		assert.Empty(t, reply.Session, "rules never override the key")
	}
}
