package validation

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type runInput struct {
	Trips string `validate:"required,report_ext"`
	From  string `validate:"omitempty,mdy_date"`
}

func TestValidateStructAccepts(t *testing.T) {
	msg := ValidateStruct(runInput{Trips: "reports/trips.xlsx", From: "1/31/2024"})
	require.Empty(t, msg)
}

func TestValidateStructRequired(t *testing.T) {
	msg := ValidateStruct(runInput{})
	require.Contains(t, msg, "VALIDATION")
	require.Contains(t, msg, "trips")
}

func TestValidateStructReportExt(t *testing.T) {
	msg := ValidateStruct(runInput{Trips: "trips.csv"})
	require.Contains(t, msg, ".xlsx")
}

func TestValidateStructDateTag(t *testing.T) {
	msg := ValidateStruct(runInput{Trips: "t.xlsx", From: "sometime soon"})
	require.Contains(t, msg, "from")

	require.Empty(t, ValidateStruct(runInput{Trips: "t.xlsx", From: ""}))
	require.Empty(t, ValidateStruct(runInput{Trips: "t.xlsx", From: "2024-01-31"}))
}
