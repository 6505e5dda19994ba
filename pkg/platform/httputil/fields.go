package httputil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/url"
)

// FieldNames maps every camelCase API field to the snake_case name older
// clients send. Responses always use the camelCase side.
var FieldNames = map[string]string{
	"walletAddress":   "wallet_address",
	"profileType":     "profile_type",
	"isVerified":      "is_verified",
	"createdAt":       "created_at",
	"updatedAt":       "updated_at",
	"approvedAt":      "approved_at",
	"targetAmount":    "target_amount",
	"raisedAmount":    "raised_amount",
	"creatorName":     "creator_name",
	"creatorEmail":    "creator_email",
	"creatorWallet":   "creator_wallet",
	"govIdFile":       "gov_id_file",
	"approvalDocFile": "approval_doc_file",
	"charityId":       "charity_id",
	"charityName":     "charity_name",
	"donorAddress":    "donor_address",
	"txHash":          "tx_hash",
	"blockNumber":     "block_number",
	"confirmedAt":     "confirmed_at",
	"accessToken":     "access_token",
	"expiresIn":       "expires_in",
	"tokenType":       "token_type",
}

var snakeToCamel = func() map[string]string {
	m := make(map[string]string, len(FieldNames))
	for camel, snake := range FieldNames {
		m[snake] = camel
	}
	return m
}()

// CamelName returns the camelCase field for a snake_case alias, or key
// unchanged when it has no alias.
func CamelName(key string) string {
	if camel, ok := snakeToCamel[key]; ok {
		return camel
	}
	return key
}

// SnakeName returns the snake_case alias of a camelCase field, or key
// unchanged when it has none.
func SnakeName(key string) string {
	if snake, ok := FieldNames[key]; ok {
		return snake
	}
	return key
}

// CamelizeKeys renames the top-level snake_case keys of a JSON object.
// When both spellings are present the camelCase value wins. Non-object
// bodies are returned untouched.
func CamelizeKeys(body []byte) ([]byte, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return body, nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return nil, err
	}
	out := make(map[string]json.RawMessage, len(obj))
	for k, v := range obj {
		camel := CamelName(k)
		if camel != k {
			if _, clash := obj[camel]; clash {
				continue
			}
		}
		out[camel] = v
	}
	return json.Marshal(out)
}

// FormValue reads a multipart or urlencoded form field by its camelCase name,
// falling back to the snake_case alias.
func FormValue(r *http.Request, name string) string {
	if v := r.FormValue(name); v != "" {
		return v
	}
	return r.FormValue(SnakeName(name))
}

// QueryValue reads a query parameter by its camelCase name, falling back to
// the snake_case alias.
func QueryValue(q url.Values, name string) string {
	if v := q.Get(name); v != "" {
		return v
	}
	return q.Get(SnakeName(name))
}
