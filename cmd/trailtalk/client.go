package main

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/trailtalk/trailtalk/internal/gateway/rest"
	"github.com/trailtalk/trailtalk/internal/session"
)

// newClient builds the gateway client and a session derived from the token.
// The token is decoded without verification just to learn the user id; the
// gateway verifies the signature on every request.
func newClient() (*rest.Client, *session.Session) {
	client := rest.NewClient(apiURL)
	sess := session.New()
	if authToken == "" {
		return client, sess
	}

	client.SetToken(authToken)
	if uid := subjectOf(authToken); uid != "" {
		sess.SetUser(&session.User{ID: uid})
	}
	return client, sess
}

func subjectOf(token string) string {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return ""
	}
	sub, err := parsed.Claims.GetSubject()
	if err != nil {
		return ""
	}
	return sub
}

// requireToken guards commands that mutate state.
func requireToken() error {
	if authToken == "" {
		return fmt.Errorf("a session token is required; set TRAILTALK_TOKEN or pass --token")
	}
	return nil
}
