package services

import (
	"context"
	"errors"
	"strings"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

var ErrGatewayNotConfigured = errors.New("twilio credentials not configured; set TWILIO_ACCOUNT_SID and TWILIO_AUTH_TOKEN")

// SMSGateway transmits one text message.
type SMSGateway interface {
	// CheckConfigured reports a configuration error before any send.
	CheckConfigured() error
	// Send returns the provider's message id.
	Send(ctx context.Context, from, to, body string) (string, error)
}

// messageCreator is the slice of the Twilio REST API the gateway uses.
type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

type TwilioGateway struct {
	api        messageCreator
	configured bool
}

func NewTwilioGateway(accountSid, authToken string) *TwilioGateway {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSid,
		Password: authToken,
	})
	return &TwilioGateway{
		api:        client.Api,
		configured: strings.TrimSpace(accountSid) != "" && strings.TrimSpace(authToken) != "",
	}
}

func (g *TwilioGateway) CheckConfigured() error {
	if !g.configured {
		return ErrGatewayNotConfigured
	}
	return nil
}

func (g *TwilioGateway) Send(ctx context.Context, from, to, body string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetFrom(from)
	params.SetTo(to)
	params.SetBody(body)

	resp, err := g.api.CreateMessage(params)
	if err != nil {
		return "", err
	}
	if resp == nil || resp.Sid == nil {
		return "", nil
	}
	return *resp.Sid, nil
}
