package dialogue

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sipeed/picocast/pkg/persona"
)

func testRegistry() *persona.Registry {
	return persona.NewRegistry(persona.DefaultDisplayNames(), 50)
}

func TestValidator_Validate(t *testing.T) {
	reg := testRegistry()
	v := NewValidator(reg)
	strat := reg.ForRole(persona.RoleStrategist)

	tests := []struct {
		name   string
		text   string
		reason Reason
	}{
		{"accepted", "A rolling three-month average would separate the real shift from noise.", ReasonNone},
		{"mentions other persona", "Stat makes a fair point about seasonality in ASA.", ReasonNone},
		{"too long", strings.Repeat("word ", 51), ReasonTooLong},
		{"empty", "   ", ReasonEmpty},
		{"other label", "Stat: the variance is too high to act on.", ReasonImpersonation},
		{"bold label", "**Nexus**: welcome back to the show everyone.", ReasonImpersonation},
		{"self claim", "As always, I'm Nexus and this is the show.", ReasonImpersonation},
		{"this is claim", "Hello there, this is Stat speaking today.", ReasonImpersonation},
		{"mustache", "Our ASA dropped to {{asa_value}} this month.", ReasonPlaceholder},
		{"dollar brace", "Our ASA dropped to ${asa} this month.", ReasonPlaceholder},
		{"single brace", "Our ASA dropped to {value} this month.", ReasonPlaceholder},
		{"upper bracket", "Our ASA dropped to [METRIC_VALUE] this month.", ReasonPlaceholder},
		{"angle", "Our ASA dropped to <placeholder> this month.", ReasonPlaceholder},
		{"short", "Yes.", ReasonMalformed},
		{"shouting", "THIS IS HUGE FOR US.", ReasonMalformed},
		{"url", "See https://example.com for the full dashboard.", ReasonMalformed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := v.Validate(strat, tt.text)
			assert.Equal(t, tt.reason, res.Reason, res.Detail)
			assert.Equal(t, tt.reason == ReasonNone, res.OK)
		})
	}
}

func TestValidator_OwnNameIsAllowed(t *testing.T) {
	reg := testRegistry()
	v := NewValidator(reg)
	host := reg.ForRole(persona.RoleHost)

	res := v.Validate(host, "Welcome back, I'm Nexus and today we look at ASA.")
	assert.True(t, res.OK, res.Detail)
}

func TestValidator_OrderLengthBeforePlaceholder(t *testing.T) {
	reg := testRegistry()
	v := NewValidator(reg)

	text := "{{x}} " + strings.Repeat("word ", 60)
	res := v.Validate(reg.ForRole(persona.RoleValidator), text)
	assert.Equal(t, ReasonTooLong, res.Reason)
}

func TestResult_Err(t *testing.T) {
	assert.NoError(t, Result{OK: true}.Err())

	err := Result{Reason: ReasonPlaceholder, Detail: "{x}"}.Err()
	var vf *ValidationFailure
	require.True(t, errors.As(err, &vf))
	assert.Equal(t, ReasonPlaceholder, vf.Reason)
	assert.Contains(t, err.Error(), "{x}")
}
