package sender

import (
	"context"
	"errors"
	"testing"

	"github.com/rzbill/courier/pkg/log"
)

func TestRegistryRejectsDuplicateChannel(t *testing.T) {
	logger := log.NewNop()
	_, err := NewRegistry(NewSMSSender(logger), NewSMSSender(logger))
	if err == nil {
		t.Fatalf("expected duplicate channel error")
	}
}

func TestRegistryResolvesByChannel(t *testing.T) {
	logger := log.NewNop()
	r, err := NewRegistry(NewEmailSender(0, logger), NewSMSSender(logger))
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	s, err := r.For("SMS")
	if err != nil || s.Channel() != "SMS" {
		t.Fatalf("resolve SMS: %v %v", s, err)
	}
	if _, err := r.For("PIGEON"); err == nil {
		t.Fatalf("unknown channel must error")
	}
}

func TestEmailSenderFailureRate(t *testing.T) {
	logger := log.NewNop()

	always := NewEmailSender(100, logger)
	if err := always.Send(context.Background(), Request{SendResultID: 1}); !errors.Is(err, ErrDeliveryFailed) {
		t.Fatalf("100%% sender should fail: %v", err)
	}

	never := NewEmailSender(0, logger)
	if err := never.Send(context.Background(), Request{SendResultID: 1}); err != nil {
		t.Fatalf("0%% sender should deliver: %v", err)
	}
}

func TestSMSAlwaysDelivers(t *testing.T) {
	s := NewSMSSender(log.NewNop())
	for i := 0; i < 10; i++ {
		if err := s.Send(context.Background(), Request{SendResultID: int64(i)}); err != nil {
			t.Fatalf("sms send: %v", err)
		}
	}
}
