package errdefs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	wrapped := fmt.Errorf("switch 10.0.0.2: %w", Protocolf("snmp walk", "timeout"))
	assert.Equal(t, KindProtocol, KindOf(wrapped))
	assert.True(t, errors.Is(wrapped, ErrProtocol))
	assert.False(t, errors.Is(wrapped, ErrParse))

	assert.Equal(t, KindConnectivity, KindOf(Connectivity("agent health", errors.New("refused"))))
	assert.Equal(t, Kind(0), KindOf(errors.New("plain")))
	assert.Equal(t, "unknown", Kind(0).String())
}
