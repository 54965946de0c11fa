package service

import (
	"math"

	"github.com/elimu-fund/bursary-api/internal/models"
)

// requiredProfileFields is the fixed ordered checklist of scalar fields a
// profile must fill before its owner may apply. Identification (national ID
// or passport) is a single composite requirement.
var requiredProfileFields = []struct {
	Name    string
	Present func(p *models.StudentProfile) bool
}{
	{"first_name", func(p *models.StudentProfile) bool { return p.FirstName != "" }},
	{"last_name", func(p *models.StudentProfile) bool { return p.LastName != "" }},
	{"gender", func(p *models.StudentProfile) bool { return p.Gender != "" }},
	{"birth_date", func(p *models.StudentProfile) bool { return !p.BirthDate.IsZero() }},
	{"identification", func(p *models.StudentProfile) bool {
		return (p.NationalID != nil && *p.NationalID != "") || (p.PassportNumber != nil && *p.PassportNumber != "")
	}},
	{"county_id", func(p *models.StudentProfile) bool { return p.CountyID != "" }},
	{"sub_county_id", func(p *models.StudentProfile) bool { return p.SubCountyID != "" }},
	{"ward_id", func(p *models.StudentProfile) bool { return p.WardID != "" }},
	{"institution_id", func(p *models.StudentProfile) bool { return p.InstitutionID != "" }},
	{"admission_number", func(p *models.StudentProfile) bool { return p.AdmissionNumber != "" }},
	{"course_name", func(p *models.StudentProfile) bool { return p.CourseName != "" }},
	{"year_of_study", func(p *models.StudentProfile) bool { return p.YearOfStudy > 0 }},
	{"parent_status", func(p *models.StudentProfile) bool { return p.ParentStatus != "" }},
	{"household_size", func(p *models.StudentProfile) bool { return p.HouseholdSize > 0 }},
	{"emergency_contact_name", func(p *models.StudentProfile) bool { return p.EmergencyContactName != "" }},
	{"emergency_contact_phone", func(p *models.StudentProfile) bool { return p.EmergencyContactPhone != "" }},
}

// requiredProfileDocuments is the fixed set of document types every profile
// must hold before submission.
var requiredProfileDocuments = []models.DocumentType{
	models.DocumentTypeNationalID,
	models.DocumentTypeAdmissionLetter,
	models.DocumentTypeFeeStructure,
}

// EvaluateCompleteness checks a profile and its document set against the
// fixed submission prerequisites. It has no side effects; callers persist
// the cached is_complete flag themselves.
func EvaluateCompleteness(profile *models.StudentProfile, documents []models.ProfileDocument) models.CompletenessResult {
	result := models.CompletenessResult{
		MissingFields:     []string{},
		MissingDocuments:  []models.DocumentType{},
		RequiredDocuments: append([]models.DocumentType{}, requiredProfileDocuments...),
		UploadedDocuments: []models.DocumentType{},
	}

	satisfied := 0
	for _, field := range requiredProfileFields {
		if field.Present(profile) {
			satisfied++
			continue
		}
		result.MissingFields = append(result.MissingFields, field.Name)
	}

	uploaded := make(map[models.DocumentType]bool, len(documents))
	for _, doc := range documents {
		uploaded[doc.Type] = true
		result.UploadedDocuments = append(result.UploadedDocuments, doc.Type)
	}
	for _, required := range requiredProfileDocuments {
		if uploaded[required] {
			satisfied++
			continue
		}
		result.MissingDocuments = append(result.MissingDocuments, required)
	}

	total := len(requiredProfileFields) + len(requiredProfileDocuments)
	result.Percentage = int(math.Round(float64(satisfied) / float64(total) * 100))
	result.IsComplete = len(result.MissingFields) == 0 && len(result.MissingDocuments) == 0
	return result
}
