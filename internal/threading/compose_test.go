package threading

import (
	"bytes"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"draft-relay/internal/model"
)

func TestComposeCarriesThreadHeaders(t *testing.T) {
	reply := &model.OutboundReply{
		To:         "alice@example.com",
		Subject:    "Re: Budget",
		Body:       "Numbers attached.\nThanks",
		InReplyTo:  "<m1@example.com>",
		References: []string{"<r0@example.com>", "<m1@example.com>"},
	}

	raw, id, err := Compose("me@example.com", reply, time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(id, "<") && strings.HasSuffix(id, ">"))

	r, err := mail.CreateReader(bytes.NewReader(raw))
	require.NoError(t, err)

	subject, err := r.Header.Subject()
	require.NoError(t, err)
	assert.Equal(t, "Re: Budget", subject)

	inReplyTo, err := r.Header.MsgIDList("In-Reply-To")
	require.NoError(t, err)
	assert.Equal(t, []string{"m1@example.com"}, inReplyTo)

	refs, err := r.Header.MsgIDList("References")
	require.NoError(t, err)
	assert.Equal(t, []string{"r0@example.com", "m1@example.com"}, refs)

	to, err := r.Header.AddressList("To")
	require.NoError(t, err)
	require.Len(t, to, 1)
	assert.Equal(t, "alice@example.com", to[0].Address)

	part, err := r.NextPart()
	require.NoError(t, err)
	body, err := io.ReadAll(part.Body)
	require.NoError(t, err)
	assert.Equal(t, "Numbers attached.\nThanks", strings.ReplaceAll(string(body), "\r\n", "\n"))
}

func TestComposeWithoutThreadOmitsHeaders(t *testing.T) {
	raw, _, err := Compose("me@example.com", &model.OutboundReply{To: "bob@example.com", Subject: "Re: hi", Body: "ok"}, time.Now())
	require.NoError(t, err)

	assert.NotContains(t, string(raw), "In-Reply-To")
	assert.NotContains(t, string(raw), "References")
}
