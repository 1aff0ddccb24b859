package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserRefAcceptsBothEncodings(t *testing.T) {
	cases := []struct {
		input string
		want  UserRef
	}{
		{`42`, UserRef{ID: 42, Valid: true}},
		{`"42"`, UserRef{ID: 42, Valid: true}},
		{`{"id": 42}`, UserRef{ID: 42, Valid: true}},
		{`{"_id": "42"}`, UserRef{ID: 42, Valid: true}},
		{`{"id": "7", "name": "Ana"}`, UserRef{ID: 7, Valid: true}},
		{`null`, UserRef{}},
		{`{"id": null}`, UserRef{}},
	}
	for _, tc := range cases {
		t.Run(tc.input, func(t *testing.T) {
			var got UserRef
			require.NoError(t, json.Unmarshal([]byte(tc.input), &got))
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestUserRefRejectsGarbage(t *testing.T) {
	for _, input := range []string{`"abc"`, `-3`, `0`, `{}`, `{"id": {"id": 1}}`, `true`} {
		var got UserRef
		assert.Error(t, json.Unmarshal([]byte(input), &got), input)
	}
}

func TestUserRefMarshalsCanonically(t *testing.T) {
	payload := struct {
		Assignee UserRef `json:"assignee"`
		Reviewer UserRef `json:"reviewer"`
	}{Assignee: UserRef{ID: 9, Valid: true}}

	data, err := json.Marshal(payload)
	require.NoError(t, err)
	assert.JSONEq(t, `{"assignee": 9, "reviewer": null}`, string(data))

	assert.Nil(t, UserRef{}.Ptr())
	require.NotNil(t, payload.Assignee.Ptr())
	assert.Equal(t, int64(9), *payload.Assignee.Ptr())
}
