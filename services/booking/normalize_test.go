package booking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kidsclub/models"
)

func TestDecodeWireJSON_SnakeAndCamelCase(t *testing.T) {
	body := []byte(`{
		"parent_guardian": {"name": "Amina Otieno", "email": "amina@example.com"},
		"participants": [{"child_id": "child-1", "name": "Zuri", "date_of_birth": "2018-03-14"}],
		"schedules": [{"date": "2025-06-01", "start_time": "10:00", "endTime": "13:00"}],
		"package_id": "pkg-10",
		"total_hours": "10",
		"packageBasePrice": 100,
		"package_expires_at": "2099-01-01T00:00:00Z"
	}`)

	var req models.CreateBookingRequest
	require.NoError(t, DecodeWireJSON(body, &req))

	assert.Equal(t, "Amina Otieno", req.ParentGuardian.Name)
	assert.Equal(t, "child-1", req.Participants[0].ChildID)
	assert.Equal(t, "2018-03-14", req.Participants[0].DateOfBirth)
	assert.Equal(t, "10:00", req.Schedules[0].StartTime)
	assert.Equal(t, "13:00", req.Schedules[0].EndTime)
	assert.Equal(t, "pkg-10", req.PackageID)
	assert.Equal(t, 10.0, req.TotalHours)
	assert.Equal(t, 100.0, req.PackageBasePrice)
	require.NotNil(t, req.PackageExpiresAt)
	assert.True(t, req.PackageExpiresAt.Equal(time.Date(2099, 1, 1, 0, 0, 0, 0, time.UTC)))
}

func TestDecodeWireJSON_BlankExpiryStaysUnset(t *testing.T) {
	for _, body := range []string{
		`{"package_expires_at": ""}`,
		`{"packageExpiresAt": "  "}`,
		`{"packageExpiresAt": null}`,
		`{}`,
	} {
		var req models.CreateBookingRequest
		require.NoError(t, DecodeWireJSON([]byte(body), &req), body)
		assert.Nil(t, req.PackageExpiresAt, body)
	}

	var rec models.BookingRecord
	require.NoError(t, DecodeWireJSON([]byte(`{"created_at": "", "updated_at": "2025-05-20T09:00:00Z"}`), &rec))
	assert.True(t, rec.CreatedAt.IsZero())
	assert.Equal(t, 2025, rec.UpdatedAt.Year())

	var bad models.CreateBookingRequest
	assert.Error(t, DecodeWireJSON([]byte(`{"package_expires_at": "next tuesday"}`), &bad))
}

func TestDecodeWireJSON_Malformed(t *testing.T) {
	var req models.CreateBookingRequest
	assert.Error(t, DecodeWireJSON([]byte(`{"participants": `), &req))
	assert.Error(t, DecodeWireJSON([]byte(`{"participants": "zuri"}`), &req))
}

func TestDecodeBookingRecord_DerivedFieldsAreRebuilt(t *testing.T) {
	rec, err := DecodeBookingRecord(map[string]any{
		"id":              "b-1",
		"reference":       "BK-20250520-0A1B2C3D",
		"status":          "CONFIRMED",
		"payment_status":  "pending",
		"total_hours":     10,
		"remaining_hours": 99,
		"total_price":     100,
		"paid_amount":     100,
		"currency":        "usd",
		"participants":    []any{map[string]any{"childId": "child-1", "name": "Zuri"}},
		"schedules": []any{
			map[string]any{"id": "s-1", "date": "2025-06-01", "start_time": "10:00", "end_time": "12:00", "status": "completed"},
			map[string]any{"id": "s-2", "date": "2025-06-02", "start_time": "10:00", "end_time": "11:00", "status": "scheduled"},
		},
	})
	require.NoError(t, err)

	out := ToRecord(FromRecord(rec))
	assert.Equal(t, "confirmed", out.Status)
	assert.Equal(t, "paid", out.PaymentStatus)
	assert.Equal(t, 3.0, out.BookedHours)
	assert.Equal(t, 2.0, out.UsedHours)
	assert.Equal(t, 7.0, out.RemainingHours)
	assert.Equal(t, []string{"child-1"}, out.ChildKeys)
	assert.Equal(t, 0.0, out.OutstandingAmount)
}
