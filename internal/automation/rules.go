package automation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"chatrelay/internal/chat"
)

// WelcomeMessage greets a new visitor on the chat page.
const WelcomeMessage = "Olá! Sou o ValeZap. Como posso te ajudar hoje?"

type rule struct {
	anyOf []string
	allOf []string
	reply string
}

var rules = []rule{
	{anyOf: []string{"ola", "olá", "oi", "bom dia", "boa tarde"}, reply: "Oi! 😊 Conte comigo para informações sobre vales, benefícios e suporte."},
	{allOf: []string{"vale", "transporte"}, reply: "Você pode consultar seu saldo de vale-transporte pelo aplicativo oficial ou pelo portal do colaborador."},
	{anyOf: []string{"cartao", "cartão"}, reply: "Se o seu cartão apresentar problemas, recomendo tentar reaproximar após alguns minutos. Caso persista, posso orientar como solicitar um novo."},
	{anyOf: []string{"obrigado", "valeu"}, reply: "De nada! Se precisar de algo mais é só chamar."},
	{anyOf: []string{"tchau", "até"}, reply: "Até mais! Sempre que quiser continuar é só enviar uma mensagem."},
	{anyOf: []string{"horario", "horário"}, reply: "Nosso atendimento humano funciona das 8h às 18h em dias úteis."},
}

// Rules answers from a fixed keyword table without leaving the process.
type Rules struct {
	now func() time.Time
}

var _ chat.Responder = (*Rules)(nil)

func NewRules() *Rules {
	return &Rules{now: time.Now}
}

func (r *Rules) Respond(_ context.Context, in chat.Inbound) (chat.Reply, bool) {
	return chat.Reply{Text: r.answer(in.Text)}, true
}

func (r *Rules) answer(text string) string {
	normalized := strings.ToLower(strings.TrimSpace(text))
	if normalized == "" {
		return "Não entendi sua mensagem. Pode tentar novamente?"
	}
	for _, rl := range rules {
		if rl.matches(normalized) {
			return rl.reply
		}
	}
	return fmt.Sprintf("Recebi sua mensagem às %s. Em instantes um de nossos atendentes virtuais retorna com mais detalhes!",
		r.now().Format("15:04"))
}

func (rl rule) matches(s string) bool {
	if len(rl.allOf) > 0 {
		for _, w := range rl.allOf {
			if !strings.Contains(s, w) {
				return false
			}
		}
		return true
	}
	for _, w := range rl.anyOf {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
