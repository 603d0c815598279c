package domain

import (
	"strings"
	"time"
)

// Interaction types sent by the chat platform.
const (
	InteractionPing               = 1
	InteractionApplicationCommand = 2
)

// Interaction response types.
const (
	ResponsePong                     = 1
	ResponseChannelMessageWithSource = 4
)

// Command names and option names.
const (
	CommandVerify   = "verificar"
	CommandEcho     = "echo"
	OptionIdentity  = "email_ou_id"
	OptionEchoInput = "msg"
)

// Interaction is the inbound webhook payload. Only the fields the handler
// reads are decoded.
type Interaction struct {
	Type   int          `json:"type"`
	Data   *CommandData `json:"data,omitempty"`
	Member *Member      `json:"member,omitempty"`
	User   *User        `json:"user,omitempty"`
}

type CommandData struct {
	ID      string          `json:"id,omitempty"`
	Name    string          `json:"name"`
	Options []CommandOption `json:"options,omitempty"`
}

// CommandOption values are strings for every option this bot registers.
type CommandOption struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type Member struct {
	User *User `json:"user,omitempty"`
}

type User struct {
	ID string `json:"id"`
}

// Option returns the value of the first option named name.
func (d *CommandData) Option(name string) (string, bool) {
	if d == nil {
		return "", false
	}
	for _, opt := range d.Options {
		if opt.Name == name {
			return opt.Value, true
		}
	}
	return "", false
}

// InvokerID resolves who ran the command: the guild member, then the DM
// user, then the identifier carried in data.
func (i *Interaction) InvokerID() string {
	if i.Member != nil && i.Member.User != nil && i.Member.User.ID != "" {
		return i.Member.User.ID
	}
	if i.User != nil && i.User.ID != "" {
		return i.User.ID
	}
	if i.Data != nil {
		return i.Data.ID
	}
	return ""
}

// InteractionResponse is serialized as the webhook HTTP response body.
type InteractionResponse struct {
	Type int           `json:"type"`
	Data *ResponseData `json:"data,omitempty"`
}

type ResponseData struct {
	Content string `json:"content"`
}

func PongResponse() InteractionResponse {
	return InteractionResponse{Type: ResponsePong}
}

func MessageResponse(content string) InteractionResponse {
	return InteractionResponse{
		Type: ResponseChannelMessageWithSource,
		Data: &ResponseData{Content: content},
	}
}

// Order is a purchase fetched from the commerce API.
type Order struct {
	ID       any       `json:"id,omitempty"`
	Customer *Customer `json:"customer,omitempty"`
}

type Customer struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// IdentityRecord is one ledger entry.
type IdentityRecord struct {
	Identity  string    `json:"identity"`
	CreatedAt time.Time `json:"created_at"`
}

// NormalizeIdentity trims and lower-cases an email or identifier so that
// ledger lookups and purchaser matching agree.
func NormalizeIdentity(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
