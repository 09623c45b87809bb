package publish

import (
	"errors"

	"github.com/toothbrush/confluence-markdown/confluence"
)

var (
	// ErrConversion covers a document that couldn't be read or converted: unreadable file,
	// invalid UTF-8, broken front matter.
	ErrConversion = errors.New("publish: conversion failed")

	// ErrConfig covers anything wrong before the first remote call: credentials, target, mapping.
	ErrConfig = errors.New("publish: configuration error")
)

// Process exit codes.
const (
	ExitOK         = 0
	ExitConversion = 1
	ExitAPI        = 2
	ExitConfig     = 3
)

// ExitCode maps err onto a process exit code.  Authentication failures count as configuration
// problems; every other failure, wire or not, is an API failure.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, ErrConversion):
		return ExitConversion
	case errors.Is(err, ErrConfig), errors.Is(err, confluence.ErrAuth):
		return ExitConfig
	default:
		return ExitAPI
	}
}

// Describe names the category of err for people.
func Describe(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrConversion):
		return "couldn't convert the Markdown document"
	case errors.Is(err, ErrConfig):
		return "configuration problem"
	}

	kind, ok := confluence.KindOf(err)
	if !ok {
		return "unexpected failure"
	}
	switch kind {
	case confluence.KindAuth:
		return "authentication failed: check the email and API token"
	case confluence.KindNotFound:
		return "the page does not exist"
	case confluence.KindConflict:
		return "a concurrent change was detected: re-fetch the page and retry the write"
	case confluence.KindRateLimited:
		return "rate limited by Confluence: try again later"
	case confluence.KindServer:
		return "Confluence had a server error"
	case confluence.KindTransport:
		return "couldn't reach Confluence"
	default:
		return "Confluence rejected the request"
	}
}
