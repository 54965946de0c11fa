package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elimu-fund/bursary-api/internal/models"
)

func completeProfile() *models.StudentProfile {
	nationalID := "12345678"
	return &models.StudentProfile{
		FirstName:             "Achieng",
		LastName:              "Odhiambo",
		Gender:                "FEMALE",
		BirthDate:             time.Date(2003, 4, 12, 0, 0, 0, 0, time.UTC),
		NationalID:            &nationalID,
		CountyID:              "county-1",
		SubCountyID:           "sub-1",
		WardID:                "ward-1",
		InstitutionID:         "inst-1",
		AdmissionNumber:       "ADM/001",
		CourseName:            "BSc Computer Science",
		YearOfStudy:           2,
		ParentStatus:          "ONE_DECEASED",
		HouseholdSize:         5,
		EmergencyContactName:  "Mary Odhiambo",
		EmergencyContactPhone: "+254700000002",
	}
}

func allRequiredDocuments() []models.ProfileDocument {
	return []models.ProfileDocument{
		{Type: models.DocumentTypeNationalID},
		{Type: models.DocumentTypeAdmissionLetter},
		{Type: models.DocumentTypeFeeStructure},
	}
}

func TestEvaluateCompletenessFullProfile(t *testing.T) {
	result := EvaluateCompleteness(completeProfile(), allRequiredDocuments())

	assert.True(t, result.IsComplete)
	assert.Equal(t, 100, result.Percentage)
	assert.Empty(t, result.MissingFields)
	assert.Empty(t, result.MissingDocuments)
}

func TestEvaluateCompletenessEmptyProfile(t *testing.T) {
	result := EvaluateCompleteness(&models.StudentProfile{}, nil)

	assert.False(t, result.IsComplete)
	assert.Equal(t, 0, result.Percentage)
	assert.Len(t, result.MissingFields, 16)
	assert.Len(t, result.MissingDocuments, 3)
	// Lists are initialised, never nil, so they serialise as [].
	assert.NotNil(t, result.UploadedDocuments)
}

func TestEvaluateCompletenessPassportSatisfiesIdentification(t *testing.T) {
	profile := completeProfile()
	passport := "A1234567"
	profile.NationalID = nil
	profile.PassportNumber = &passport

	result := EvaluateCompleteness(profile, allRequiredDocuments())
	assert.True(t, result.IsComplete)
	assert.NotContains(t, result.MissingFields, "identification")
}

func TestEvaluateCompletenessFractionalPercentageRounds(t *testing.T) {
	profile := completeProfile()
	profile.CourseName = ""

	// 18 of 19 requirements: 94.7 rounds to 95.
	result := EvaluateCompleteness(profile, allRequiredDocuments())
	assert.False(t, result.IsComplete)
	assert.Equal(t, 95, result.Percentage)
	assert.Equal(t, []string{"course_name"}, result.MissingFields)
}

func TestEvaluateCompletenessMissingDocumentsOnly(t *testing.T) {
	result := EvaluateCompleteness(completeProfile(), []models.ProfileDocument{
		{Type: models.DocumentTypeNationalID},
		{Type: models.DocumentTypeFeeStatement},
	})

	assert.False(t, result.IsComplete)
	assert.Empty(t, result.MissingFields)
	require.Len(t, result.MissingDocuments, 2)
	assert.Contains(t, result.MissingDocuments, models.DocumentTypeAdmissionLetter)
	assert.Contains(t, result.MissingDocuments, models.DocumentTypeFeeStructure)
	// Extra uploads are reported but never count toward the requirement.
	assert.Contains(t, result.UploadedDocuments, models.DocumentTypeFeeStatement)
}
