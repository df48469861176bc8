package whatsapp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeNumber(t *testing.T) {
	cases := map[string]string{
		"98765 43210":      "919876543210",
		"+91 98765-43210":  "919876543210",
		"09876543210":      "919876543210",
		"+224 622 35 0064": "224622350064",
	}
	for in, want := range cases {
		got, err := NormalizeNumber(in, "91")
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := NormalizeNumber("12345", "91")
	assert.ErrorIs(t, err, ErrInvalidRecipient)
}

func TestSendTextMessage(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v20.0/phone-1/messages", r.URL.Path)
		assert.Equal(t, "Bearer token", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"messages":[{"id":"wamid.1"}]}`))
	}))
	defer srv.Close()

	client := NewClient(Config{AccessToken: "token", PhoneNumberID: "phone-1", BaseURL: srv.URL, APIVersion: "v20.0", CountryCode: "91"})
	resp, err := client.SendTextMessage(context.Background(), SendTextMessageRequest{To: "9876543210", Body: "paid"})
	require.NoError(t, err)

	require.Len(t, resp.Messages, 1)
	assert.Equal(t, "wamid.1", resp.Messages[0].ID)
	assert.Equal(t, "919876543210", got["to"])
}

func TestSendTextMessage_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"bad recipient","code":131026}}`))
	}))
	defer srv.Close()

	client := NewClient(Config{AccessToken: "t", PhoneNumberID: "p", BaseURL: srv.URL, APIVersion: "v20.0"})
	_, err := client.SendTextMessage(context.Background(), SendTextMessageRequest{To: "919876543210", Body: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "131026")
	assert.Contains(t, err.Error(), "bad recipient")
}
