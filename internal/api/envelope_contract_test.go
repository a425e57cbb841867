package api

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// getFixturePath returns the path to the testdata directory within the server repo.
// Client tests embed matching JSON strings to verify parsing compatibility.
func getFixturePath(t *testing.T) string {
	_, filename, _, ok := runtime.Caller(0)
	require.True(t, ok, "Failed to get caller info")

	// Navigate from server/internal/api to server/testdata/envelope
	serverDir := filepath.Dir(filepath.Dir(filepath.Dir(filename)))
	return filepath.Join(serverDir, "testdata", "envelope")
}

// TestEnvelopeContract_SuccessMatchesFixture verifies the server produces
// exactly the same JSON structure as defined in the shared fixture.
func TestEnvelopeContract_SuccessMatchesFixture(t *testing.T) {
	fixturePath := filepath.Join(getFixturePath(t), "success.json")
	fixtureBytes, err := os.ReadFile(fixturePath)
	require.NoError(t, err, "Failed to read fixture file - contract tests require shared fixtures")

	// Parse fixture to understand expected structure
	var expected map[string]any
	err = json.Unmarshal(fixtureBytes, &expected)
	require.NoError(t, err)

	// Generate envelope using server's EnvelopeTransformer
	data := map[string]string{"id": "test-123", "name": "Test Item"}
	result, err := EnvelopeTransformer(nil, "200", data)
	require.NoError(t, err)

	// Marshal server output
	serverBytes, err := json.Marshal(result)
	require.NoError(t, err)

	var serverOutput map[string]any
	err = json.Unmarshal(serverBytes, &serverOutput)
	require.NoError(t, err)

	// Verify structure matches fixture
	assert.Equal(t, expected["v"], serverOutput["v"], "Version field 'v' must match fixture")
	assert.Equal(t, expected["success"], serverOutput["success"], "Success field must match fixture")
	assert.Contains(t, serverOutput, "data", "Response must contain 'data' field")

	// Verify no unexpected fields
	for key := range serverOutput {
		assert.Contains(t, expected, key, "Server output contains unexpected field: %s", key)
	}
}

// TestEnvelopeContract_SuccessNullDataMatchesFixture verifies success responses
// without data match the fixture structure.
func TestEnvelopeContract_SuccessNullDataMatchesFixture(t *testing.T) {
	fixturePath := filepath.Join(getFixturePath(t), "success_null_data.json")
	fixtureBytes, err := os.ReadFile(fixturePath)
	require.NoError(t, err, "Failed to read fixture file")

	var expected map[string]any
	err = json.Unmarshal(fixtureBytes, &expected)
	require.NoError(t, err)

	// Generate envelope with nil data
	result, err := EnvelopeTransformer(nil, "204", nil)
	require.NoError(t, err)

	serverBytes, err := json.Marshal(result)
	require.NoError(t, err)

	var serverOutput map[string]any
	err = json.Unmarshal(serverBytes, &serverOutput)
	require.NoError(t, err)

	// Verify required fields
	assert.Equal(t, expected["v"], serverOutput["v"], "Version field must match")
	assert.Equal(t, expected["success"], serverOutput["success"], "Success field must match")
}

// TestEnvelopeContract_SimpleErrorMatchesFixture verifies simple error responses
// match the fixture structure.
func TestEnvelopeContract_SimpleErrorMatchesFixture(t *testing.T) {
	fixturePath := filepath.Join(getFixturePath(t), "error_simple.json")
	fixtureBytes, err := os.ReadFile(fixturePath)
	require.NoError(t, err, "Failed to read fixture file")

	var expected map[string]any
	err = json.Unmarshal(fixtureBytes, &expected)
	require.NoError(t, err)

	// Generate error envelope
	result, err := EnvelopeTransformer(nil, "404", &APIError{Message: "Resource not found"})
	require.NoError(t, err)

	serverBytes, err := json.Marshal(result)
	require.NoError(t, err)

	var serverOutput map[string]any
	err = json.Unmarshal(serverBytes, &serverOutput)
	require.NoError(t, err)

	// Verify structure matches fixture
	assert.Equal(t, expected["v"], serverOutput["v"], "Version field must match")
	assert.Equal(t, expected["success"], serverOutput["success"], "Success must be false")
	assert.Contains(t, serverOutput, "error", "Must contain 'error' field")
	assert.IsType(t, "", serverOutput["error"], "Error must be a string")
}

// TestEnvelopeContract_DetailedErrorMatchesFixture verifies detailed error responses
// with code/message/details match the fixture structure.
func TestEnvelopeContract_DetailedErrorMatchesFixture(t *testing.T) {
	fixturePath := filepath.Join(getFixturePath(t), "error_detailed.json")
	fixtureBytes, err := os.ReadFile(fixturePath)
	require.NoError(t, err, "Failed to read fixture file")

	var expected map[string]any
	err = json.Unmarshal(fixtureBytes, &expected)
	require.NoError(t, err)

	// Generate detailed error envelope
	result, err := EnvelopeTransformer(nil, "422", &APIError{
		Code:    "SUBMISSION_REJECTED",
		Message: "submission rejected",
		Details: map[string]any{"errors": map[string]any{}, "draft": map[string]any{}},
	})
	require.NoError(t, err)

	serverBytes, err := json.Marshal(result)
	require.NoError(t, err)

	var serverOutput map[string]any
	err = json.Unmarshal(serverBytes, &serverOutput)
	require.NoError(t, err)

	// Verify structure matches fixture
	assert.Equal(t, expected["v"], serverOutput["v"], "Version field must match")
	assert.Contains(t, serverOutput, "code", "Must contain 'code' field")
	assert.Contains(t, serverOutput, "message", "Must contain 'message' field")
	assert.Contains(t, serverOutput, "details", "Must contain 'details' field")

	// Verify types
	assert.IsType(t, "", serverOutput["code"], "Code must be a string")
	assert.IsType(t, "", serverOutput["message"], "Message must be a string")
	assert.Equal(t, expected["success"], serverOutput["success"])

	for key := range serverOutput {
		assert.Contains(t, expected, key, "Server output contains unexpected field: %s", key)
	}
}

// TestEnvelopeContract_VersionFieldName verifies the version field is named exactly 'v'.
// This is critical - if renamed to 'version', client will break silently.
func TestEnvelopeContract_VersionFieldName(t *testing.T) {
	result, err := EnvelopeTransformer(nil, "200", nil)
	require.NoError(t, err)

	serverBytes, err := json.Marshal(result)
	require.NoError(t, err)

	var serverOutput map[string]any
	err = json.Unmarshal(serverBytes, &serverOutput)
	require.NoError(t, err)

	// CRITICAL: Field must be 'v', not 'version' or anything else
	assert.Contains(t, serverOutput, "v", "Must use 'v' as version field name")
	assert.NotContains(t, serverOutput, "version", "Must NOT use 'version' as field name")
	assert.NotContains(t, serverOutput, "Version", "Must NOT use 'Version' as field name")
}

// TestEnvelopeContract_RejectedSubmissionMatchesFixture drives a real rejected
// submission through the router and compares its shape with the fixture,
// down to the field errors and the corrected draft.
func TestEnvelopeContract_RejectedSubmissionMatchesFixture(t *testing.T) {
	fixtureBytes, err := os.ReadFile(filepath.Join(getFixturePath(t), "error_detailed.json"))
	require.NoError(t, err)

	var expected map[string]any
	require.NoError(t, json.Unmarshal(fixtureBytes, &expected))

	ts := setupTestServer(t)
	alice := ts.createUser(t, "alice", false)

	resp := ts.api.Post("/api/v1/runs", alice, runBody("Super Metroid", "Any%", "soon", false))
	require.Equal(t, http.StatusUnprocessableEntity, resp.Code, resp.Body.String())

	var got map[string]any
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &got))

	assert.Equal(t, expected["v"], got["v"])
	assert.Equal(t, false, got["success"])
	assert.Equal(t, "SUBMISSION_REJECTED", got["code"])
	assert.IsType(t, "", got["message"])
	for key := range got {
		assert.Contains(t, expected, key, "Server output contains unexpected field: %s", key)
	}

	details, ok := got["details"].(map[string]any)
	require.True(t, ok, "details must be an object")
	assert.Len(t, details, 2)

	errs, ok := details["errors"].(map[string]any)
	require.True(t, ok, "details.errors must be an object keyed by field")
	timeErr, ok := errs["time"].(map[string]any)
	require.True(t, ok, "the unparseable time must be reported under 'time'")
	assert.Equal(t, "unparseable_time", timeErr["kind"])
	assert.IsType(t, "", timeErr["message"])

	draft, ok := details["draft"].(map[string]any)
	require.True(t, ok, "details.draft must be an object")
	expectedDraft := expected["details"].(map[string]any)["draft"].(map[string]any)
	for key := range expectedDraft {
		assert.Contains(t, draft, key, "draft is missing field: %s", key)
	}
	assert.Equal(t, "Super Metroid", draft["game"])
	assert.Equal(t, "soon", draft["time"])
	assert.Equal(t, false, draft["bkt"])
}

// TestEnvelopeContract_MalformedRequestIsValidation verifies that huma's own
// request validation is reported as a 400 VALIDATION envelope listing the
// problems, never as a rejected submission.
func TestEnvelopeContract_MalformedRequestIsValidation(t *testing.T) {
	ts := setupTestServer(t)
	alice := ts.createUser(t, "alice", false)

	resp := ts.api.Post("/api/v1/runs", alice, map[string]any{"game": 42, "category": true})
	require.Equal(t, http.StatusBadRequest, resp.Code, resp.Body.String())

	var got map[string]any
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &got))

	assert.Equal(t, float64(EnvelopeVersion), got["v"])
	assert.Equal(t, false, got["success"])
	assert.Equal(t, "VALIDATION", got["code"])
	assert.NotEqual(t, "SUBMISSION_REJECTED", got["code"])
	assert.IsType(t, "", got["error"])

	problems, ok := got["details"].([]any)
	require.True(t, ok, "details must list the request problems")
	require.NotEmpty(t, problems)
	for _, p := range problems {
		assert.IsType(t, "", p)
	}
}
