package jobs

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func ExampleJob_Notice() {
	j := Job{ID: 0, Name: "sleep 5 &"}
	fmt.Printf("%q\n", j.Notice("Done"))

	// Output: "[1]+  Done\t  sleep 5 &"
}

func TestTransitionCoversEveryStatus(t *testing.T) {
	for _, s := range []Status{Background, Foreground, Suspended, WaitingInput} {
		for _, ev := range []Event{Exited, Killed, Stopped, StoppedOnTerminal} {
			t.Run(fmt.Sprintf("%s/%s", s, ev), func(t *testing.T) {
				_, ok := transitions[s][ev]
				assert.True(t, ok)
			})
		}
	}
}

func TestTransitionTerminal(t *testing.T) {
	assert.Equal(t, GiveTerminal, Transition(Foreground, Stopped).Terminal)
	assert.Equal(t, ReclaimTerminal, Transition(Background, Stopped).Terminal)
	assert.Equal(t, ReclaimTerminal, Transition(Foreground, Exited).Terminal)
	assert.Equal(t, KeepTerminal, Transition(Suspended, Stopped).Terminal)
}

func TestTransitionForegroundTerminalRace(t *testing.T) {
	act := Transition(Foreground, StoppedOnTerminal)
	assert.True(t, act.Continue)
	assert.Equal(t, Foreground, act.Next)
	assert.Empty(t, act.Notice)

	assert.False(t, Transition(Background, StoppedOnTerminal).Continue)
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "Waiting Input", WaitingInput.String())
	assert.Equal(t, "Status(9)", Status(9).String())
	assert.True(t, Suspended.Stopped())
	assert.False(t, Background.Stopped())
}
