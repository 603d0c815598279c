package discord

import "github.com/punchamoorthee/nobreverify/internal/domain"

const (
	CommandTypeChatInput = 1
	OptionTypeString     = 3
)

type ApplicationCommand struct {
	Name        string                     `json:"name"`
	Description string                     `json:"description"`
	Type        int                        `json:"type"`
	Options     []ApplicationCommandOption `json:"options,omitempty"`
}

type ApplicationCommandOption struct {
	Type        int    `json:"type"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Required    bool   `json:"required,omitempty"`
}

// Commands is the set of slash commands the interaction handler serves.
func Commands() []ApplicationCommand {
	return []ApplicationCommand{
		{
			Name:        domain.CommandVerify,
			Description: "Verifique sua compra para liberar o acesso",
			Type:        CommandTypeChatInput,
			Options: []ApplicationCommandOption{{
				Type:        OptionTypeString,
				Name:        domain.OptionIdentity,
				Description: "E-mail usado na compra",
				Required:    true,
			}},
		},
		{
			Name:        domain.CommandEcho,
			Description: "Repete a mensagem",
			Type:        CommandTypeChatInput,
			Options: []ApplicationCommandOption{{
				Type:        OptionTypeString,
				Name:        domain.OptionEchoInput,
				Description: "Mensagem",
				Required:    true,
			}},
		},
	}
}
