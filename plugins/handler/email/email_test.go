package email

import (
	"context"
	"errors"
	"net/smtp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/wiresentry/internal/core"
)

func TestHandleSendsMail(t *testing.T) {
	h := New().(*Handler)
	require.NoError(t, h.Init(map[string]any{
		"host": "mail.example.com",
		"from": "ids@example.com",
		"to":   []any{"ops@example.com", "sec@example.com"},
	}))

	var (
		gotAddr string
		gotTo   []string
		gotMsg  string
		gotAuth smtp.Auth
	)
	h.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotTo, gotMsg, gotAuth = addr, to, string(msg), a
		return nil
	}

	a := core.NewAttack(core.DetectorInfo{ID: "d"}, "aa:aa", "bb:bb", "ARP Spoof", nil)
	require.NoError(t, h.Handle(context.Background(), a))

	assert.Equal(t, "mail.example.com:25", gotAddr)
	assert.Equal(t, []string{"ops@example.com", "sec@example.com"}, gotTo)
	assert.Nil(t, gotAuth)
	assert.Contains(t, gotMsg, "Subject: ARP Spoof Attack Detected!\r\n")
	assert.Contains(t, gotMsg, "\r\n\r\naa:aa -> bb:bb\r\n")
}

func TestHandleUsesAuthAndWrapsErrors(t *testing.T) {
	h := New().(*Handler)
	require.NoError(t, h.Init(map[string]any{
		"host":     "smtp.example.com",
		"port":     587,
		"username": "u",
		"password": "p",
		"to":       "a@example.com,b@example.com",
	}))
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, h.config.To)

	boom := errors.New("connection refused")
	h.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		assert.NotNil(t, a)
		assert.Equal(t, "smtp.example.com:587", addr)
		return boom
	}

	err := h.Handle(context.Background(), core.NewAttack(core.DetectorInfo{ID: "d"}, "a", "b", "Port Scan", nil))
	assert.ErrorIs(t, err, boom)
}

func TestInitValidation(t *testing.T) {
	tests := []struct {
		name    string
		options map[string]any
	}{
		{"missing host", map[string]any{"to": []any{"x@y"}}},
		{"missing to", map[string]any{"host": "h"}},
		{"bad port", map[string]any{"host": "h", "to": []any{"x@y"}, "port": 70000}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, New().(*Handler).Init(tt.options))
		})
	}
}

func TestSubjectAndBody(t *testing.T) {
	a := core.NewAttack(core.DetectorInfo{ID: "d"}, "10.0.0.1", "10.0.0.2", "Port Scan", nil)
	assert.Equal(t, "Port Scan Attack Detected!", Subject(a))
	assert.Equal(t, "10.0.0.1 -> 10.0.0.2", Body(a))
}
