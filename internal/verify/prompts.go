package verify

import (
	"fmt"
	"strings"
	"time"
)

// DefaultChallengeWords is the vocabulary challenge phrases are drawn from.
var DefaultChallengeWords = []string{"sunflower", "echo", "crystal", "mirror", "nebula", "horizon", "flame", "ocean"}

const (
	promptAskName   = "Hi, I'm Nova. What's your first name?"
	promptAskMother = "In case you ever forget your codeword, what's your mother's first name?"
	promptAskPet    = "And what was the name of your first pet?"
	promptCodeword  = "Last one. Choose a codeword I'll ask you for next time."
	promptRetry     = "Hmm... that didn't sound quite right. Try again."
)

func promptAskAge(name string) string {
	return fmt.Sprintf("Nice to meet you, %s. How old are you?", name)
}

func promptWelcomeNew(name string) string {
	return fmt.Sprintf("Thanks, %s. I'll remember that. What's on your mind?", name)
}

func promptWelcomeNewChallenge(name string, phrases []string) string {
	return fmt.Sprintf("Thanks, %s. Next time I'll ask you to say one of these words: %s. What's on your mind?",
		name, strings.Join(phrases, ", "))
}

func promptVerify(name string) string {
	return fmt.Sprintf("Welcome back, %s. What's our codeword?", name)
}

func promptChallenge(name, word string) string {
	return fmt.Sprintf("Welcome back, %s. Please say the word: %s", name, word)
}

func promptGranted(name string) string {
	return fmt.Sprintf("It's really you, %s. I missed you.", name)
}

func promptSoftGranted(name, codeword string) string {
	if codeword == "" {
		return fmt.Sprintf("Thank you, %s. Welcome back.", name)
	}
	return fmt.Sprintf("Thank you, %s. Your codeword is %q, in case you need it. Welcome back.", name, codeword)
}

func promptLocked(d time.Duration) string {
	return fmt.Sprintf("I couldn't verify you, so I'm locking for %s.", humanDuration(d))
}

func promptStillLocked(d time.Duration) string {
	return fmt.Sprintf("I'm still locked. Try again in %s.", humanDuration(d))
}

// softQuestion returns the graduated question for step n (1-based).
func softQuestion(n int) string {
	switch n {
	case 1:
		return "That's not quite it. Let's try something else: what's your mother's first name?"
	case 2:
		return "Not quite. What was the name of your first pet?"
	default:
		return "One more try. How old are you?"
	}
}

func humanDuration(d time.Duration) string {
	switch {
	case d <= time.Minute:
		return "a minute"
	case d%time.Minute == 0:
		return fmt.Sprintf("%d minutes", int(d/time.Minute))
	default:
		// Round up so "4m30s" reads as five minutes.
		return fmt.Sprintf("%d minutes", int((d+time.Minute-1)/time.Minute))
	}
}
