package domain

import (
	"fmt"
	"strings"
	"time"
)

const AnonymousContactUserID = "anonymous"

type ContactForm struct {
	Name    string
	Email   string
	Message string
}

func (f ContactForm) Validate() error {
	if strings.TrimSpace(f.Name) == "" || strings.TrimSpace(f.Email) == "" || strings.TrimSpace(f.Message) == "" {
		return ErrIncompleteForm
	}
	return nil
}

// ComposedMessage is the text pre-filled in the messenger after a submission.
func (f ContactForm) ComposedMessage() string {
	return fmt.Sprintf("Hi! I just submitted the contact form. Here's my message: %s", f.Message)
}

type ContactSubmission struct {
	ID        string
	Name      string
	Email     string
	Message   string
	UserID    string
	CreatedAt time.Time
}
