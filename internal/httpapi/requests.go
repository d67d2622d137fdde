// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package httpapi

import (
	"errors"
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

var nameRE = regexp.MustCompile(`^[a-zA-Z\s]+$`)

// minPasswordLength is the shortest password a request may carry.
const minPasswordLength = 8

type registerRequest struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

func (r *registerRequest) normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = normalizeEmail(r.Email)
}

func (r registerRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name,
			validation.Required.Error("Name is required"),
			validation.Length(3, 50).Error("Name must be between 3 and 50 characters"),
			validation.Match(nameRE).Error("Name must contain only alphabets and spaces"),
		),
		validation.Field(&r.Email, validation.Required, is.Email.Error("Invalid email format")),
		validation.Field(&r.Password,
			validation.Required,
			validation.Length(minPasswordLength, 0).Error("Password must be at least 8 characters long"),
		),
		validation.Field(&r.ConfirmPassword, validation.By(equals(r.Password, "Passwords do not match"))),
	)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r *loginRequest) normalize() {
	r.Email = normalizeEmail(r.Email)
}

func (r loginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required.Error("Email and password are required."), is.Email.Error("Invalid email format")),
		validation.Field(&r.Password, validation.Required.Error("Email and password are required.")),
	)
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

func (r *forgotPasswordRequest) normalize() {
	r.Email = normalizeEmail(r.Email)
}

func (r forgotPasswordRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required.Error("Email is required."), is.Email.Error("Invalid email format")),
	)
}

type resetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

func (r *resetPasswordRequest) normalize() {
	r.Token = strings.TrimSpace(r.Token)
}

func (r resetPasswordRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Token, validation.Required.Error("Token is required")),
		validation.Field(&r.NewPassword,
			validation.Required,
			validation.Length(minPasswordLength, 0).Error("Password must be at least 8 characters long"),
		),
	)
}

// normalizer is implemented by request bodies that clean their input before
// validation.
type normalizer interface {
	normalize()
	validation.Validatable
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func equals(want, msg string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s != want {
			return errors.New(msg)
		}
		return nil
	}
}

// fieldErrors flattens ozzo field errors into a field → message map.
func fieldErrors(err error) map[string]string {
	var verrs validation.Errors
	if !errors.As(err, &verrs) {
		return nil
	}
	out := make(map[string]string, len(verrs))
	for field, ferr := range verrs {
		out[field] = ferr.Error()
	}
	return out
}
