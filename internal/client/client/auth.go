package client

import (
	"bytes"
	"cmp"
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/codrive/internal/client/models"
)

type authPayload struct {
	Token       string          `json:"token"`
	AccessToken string          `json:"accessToken"`
	User        *models.Profile `json:"user"`
	Usuario     *models.Profile `json:"usuario"`
}

// decodeAuth normalizes the login/registration answer shapes.
func decodeAuth(data []byte) (*models.AuthResult, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty auth response", ErrMalformedResponse)
	}

	switch data[0] {
	case '{':
		var p authPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
		res := &models.AuthResult{
			Token: cmp.Or(p.Token, p.AccessToken),
			User:  cmp.Or(p.User, p.Usuario),
		}
		if res.Token == "" {
			return nil, fmt.Errorf("%w: no token in auth response", ErrMalformedResponse)
		}
		return res, nil

	case '"':
		var token string
		if err := json.Unmarshal(data, &token); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
		if token == "" {
			return nil, fmt.Errorf("%w: empty token", ErrMalformedResponse)
		}
		return &models.AuthResult{Token: token}, nil

	default:
		if bytes.ContainsAny(data, " \t\r\n<>") {
			return nil, fmt.Errorf("%w: unexpected auth body", ErrMalformedResponse)
		}
		return &models.AuthResult{Token: string(data)}, nil
	}
}
