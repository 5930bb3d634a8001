// Package validation checks payloads before they leave the page.
//
// It uses the `validator` library to enforce rules defined in struct
// tags and extracts validation errors into field errors the failure
// notifier can show.
package validation
