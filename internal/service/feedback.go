// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package service

import (
	"context"
	"strings"

	"msdevblog/internal/validation"
)

// FeedbackNotifier forwards visitor messages to the administrators.
type FeedbackNotifier interface {
	Feedback(ctx context.Context, theme, text, email string) error
}

// FeedbackInput is the contact form.
type FeedbackInput struct {
	Theme string `form:"theme" validate:"notblank,max=255"`
	Text  string `form:"text" validate:"notblank,max=10000"`
	Email string `form:"email" validate:"required,email"`
}

// Feedback accepts messages from the contact form.
type Feedback struct {
	notify   FeedbackNotifier
	validate *validation.Validator
}

// NewFeedback creates the feedback service.
func NewFeedback(notify FeedbackNotifier, v *validation.Validator) *Feedback {
	if v == nil {
		v = validation.New()
	}
	return &Feedback{notify: notify, validate: v}
}

// Submit validates the form and queues it for the administrators.
func (f *Feedback) Submit(ctx context.Context, in FeedbackInput) error {
	in.Theme = strings.TrimSpace(in.Theme)
	in.Email = strings.TrimSpace(in.Email)
	if err := f.validate.Validate(in); err != nil {
		return err
	}
	return f.notify.Feedback(ctx, in.Theme, in.Text, in.Email)
}
