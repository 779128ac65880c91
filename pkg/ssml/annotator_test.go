package ssml

import (
	"encoding/xml"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sipeed/picocast/pkg/dialogue"
	"github.com/sipeed/picocast/pkg/persona"
)

func newTestAnnotator() *Annotator {
	reg := persona.NewRegistry(persona.DefaultDisplayNames(), 50)
	voices := map[persona.Role]string{
		persona.RoleHost:       "en-US-SaraNeural",
		persona.RoleStrategist: "en-US-JennyNeural",
		persona.RoleValidator:  "en-US-BrianNeural",
	}
	return NewAnnotator(reg, voices, Options{Lexicon: []string{"shocking", "surprising"}})
}

func turn(role persona.Role, text string) dialogue.Turn {
	return dialogue.Turn{Index: 1, Role: role, Text: text}
}

func TestAnnotate_EmphasizesNumbers(t *testing.T) {
	a := newTestAnnotator()
	out := a.Annotate(turn(persona.RoleStrategist, "ASA fell 84.7% to 7,406 calls, costing $1,200 and -3 points."))

	for _, n := range []string{"84.7%", "7,406", "$1,200", "-3"} {
		assert.Contains(t, out.Markup, `<emphasis level="moderate">`+n+`</emphasis>`, n)
	}
	assert.NotContains(t, out.Markup, `<emphasis level="moderate">ASA`)
}

func TestAnnotate_QuestionRisesWithoutExcitement(t *testing.T) {
	a := newTestAnnotator()
	out := a.Annotate(turn(persona.RoleValidator, "Is that drop real?"))

	assert.Contains(t, out.Markup, risingOpen+"Is that drop real?"+risingClose)
	assert.NotContains(t, out.Markup, `style="excited"`)
}

func TestAnnotate_QuestionWithTriggerNestsExcitedOutside(t *testing.T) {
	a := newTestAnnotator()
	out := a.Annotate(turn(persona.RoleValidator, "Isn't that SHOCKING?"))

	assert.Contains(t, out.Markup, excitedOpen+risingOpen+"Isn&#39;t that SHOCKING?"+risingClose+excitedClose)
}

func TestAnnotate_TriggerSentenceOnly(t *testing.T) {
	a := newTestAnnotator()
	out := a.Annotate(turn(persona.RoleStrategist, "The drop is surprising. We should track it weekly."))

	assert.Contains(t, out.Markup, excitedOpen+"The drop is surprising."+excitedClose)
	assert.Contains(t, out.Markup,
		`<mstts:express-as style="calm"><prosody rate="-3%" pitch="+2%">We should track it weekly.</prosody></mstts:express-as>`)
	assert.Equal(t, 1, strings.Count(out.Markup, `style="excited"`))
}

func TestAnnotate_TriggerNeedsWholeWord(t *testing.T) {
	a := newTestAnnotator()
	out := a.Annotate(turn(persona.RoleHost, "Unsurprisingly flat numbers this week."))
	assert.NotContains(t, out.Markup, `style="excited"`)
}

func TestAnnotate_BaseTonePerPersona(t *testing.T) {
	a := newTestAnnotator()

	host := a.Annotate(turn(persona.RoleHost, "Welcome back to the show."))
	assert.Contains(t, host.Markup, `<mstts:express-as style="friendly"><prosody rate="-2%" pitch="+1%">`)
	assert.Equal(t, "en-US-SaraNeural", host.Voice)
	assert.Contains(t, host.Markup, `<voice name="en-US-SaraNeural">`)

	val := a.Annotate(turn(persona.RoleValidator, "Check the sample first. Then compare cohorts."))
	assert.Equal(t, 1, strings.Count(val.Markup, `<mstts:express-as style="serious">`), "consecutive plain sentences share a span")
	assert.Equal(t, "en-US-BrianNeural", val.Voice)
	assert.NotEmpty(t, val.Instructions)
}

func TestAnnotate_ClausePauses(t *testing.T) {
	a := newTestAnnotator()
	out := a.Annotate(turn(persona.RoleHost, "First, the queue; then, the staffing but not the budget."))

	assert.Contains(t, out.Markup, `First,<break time="220ms"/> the`)
	assert.Contains(t, out.Markup, `queue;<break time="260ms"/> then`)
	assert.Contains(t, out.Markup, `but<break time="220ms"/> not`)
	assert.True(t, strings.HasSuffix(out.Markup, `<break time="320ms"/></voice></speak>`))
}

func TestAnnotate_EscapesAndIsWellFormed(t *testing.T) {
	a := newTestAnnotator()
	out := a.Annotate(turn(persona.RoleStrategist, "R&D spend < budget, and that's fine."))

	assert.Contains(t, out.Markup, "R&amp;D")
	assert.Contains(t, out.Markup, "&lt;")

	dec := xml.NewDecoder(strings.NewReader(out.Markup))
	for {
		_, err := dec.Token()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
	}
}

func TestAnnotate_PlainAndEstimate(t *testing.T) {
	a := newTestAnnotator()
	text := strings.TrimSpace(strings.Repeat("word ", 75))
	out := a.Annotate(turn(persona.RoleHost, text))

	assert.Equal(t, text, out.Plain)
	assert.Equal(t, 30*time.Second, out.Estimated)
	assert.Len(t, a.AnnotateAll([]dialogue.Turn{turn(persona.RoleHost, "a b c"), turn(persona.RoleStrategist, "d e f")}), 2)
}

func TestStripMarkup_RecoversText(t *testing.T) {
	a := newTestAnnotator()
	texts := []string{
		"ASA fell 84.7%, which is shocking; is it real?",
		"R&D spend is flat (at 1,200) but staffing grew.",
	}
	for _, text := range texts {
		out := a.Annotate(turn(persona.RoleStrategist, text))
		assert.Equal(t, text, StripMarkup(out.Markup))
	}
}

func TestEstimateDuration(t *testing.T) {
	text := strings.TrimSpace(strings.Repeat("w ", 150))
	assert.Equal(t, time.Minute, EstimateDuration(text, 150))
	assert.Equal(t, time.Minute, EstimateDuration(text, 0))
	assert.Equal(t, 2*time.Minute, EstimateDuration(text, 75))
}
