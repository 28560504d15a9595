package model

import (
	"bytes"
	"encoding/json"
)

// PatientDemographics holds the fields a patient may review and correct at the
// kiosk. Form names match the kiosk's update form.
type PatientDemographics struct {
	FirstName                string `json:"first_name" form:"patient-first-name" binding:"required"`
	MiddleName               string `json:"middle_name" form:"patient-middle-name"`
	LastName                 string `json:"last_name" form:"patient-last-name" binding:"required"`
	DateOfBirth              string `json:"date_of_birth" form:"patient-date-of-birth"`
	Gender                   string `json:"gender" form:"patient-gender"`
	Ethnicity                string `json:"ethnicity" form:"patient-ethnicity"`
	Race                     string `json:"race" form:"patient-race"`
	Address                  string `json:"address" form:"patient-address"`
	City                     string `json:"city" form:"patient-city"`
	State                    string `json:"state" form:"patient-state"`
	ZipCode                  string `json:"zip_code" form:"patient-zip-code"`
	Email                    string `json:"email" form:"patient-email" binding:"omitempty,email"`
	CellPhone                string `json:"cell_phone" form:"patient-cell-phone"`
	HomePhone                string `json:"home_phone" form:"patient-home-phone"`
	PreferredLanguage        string `json:"preferred_language" form:"patient-preferred-language"`
	EmergencyContactName     string `json:"emergency_contact_name" form:"patient-emergency-contact-name"`
	EmergencyContactPhone    string `json:"emergency_contact_phone" form:"patient-emergency-contact-phone"`
	EmergencyContactRelation string `json:"emergency_contact_relation" form:"patient-emergency-contact-relation"`
	Employer                 string `json:"employer" form:"patient-employer"`
	EmployerAddress          string `json:"employer_address" form:"patient-employer-address"`
	EmployerCity             string `json:"employer_city" form:"patient-employer-city"`
	EmployerState            string `json:"employer_state" form:"patient-employer-state"`
	EmployerZipCode          string `json:"employer_zip_code" form:"patient-employer-zip-code"`
	ResponsiblePartyName     string `json:"responsible_party_name" form:"patient-responsible-party-name"`
	ResponsiblePartyRelation string `json:"responsible_party_relation" form:"patient-responsible-party-relation"`
	ResponsiblePartyPhone    string `json:"responsible_party_phone" form:"patient-responsible-party-phone"`
	ResponsiblePartyEmail    string `json:"responsible_party_email" form:"patient-responsible-party-email" binding:"omitempty,email"`
}

// Patient is the upstream patient record. The upstream only supports full
// replacement, so fields this service does not model are kept verbatim and
// written back on marshal.
type Patient struct {
	ID int64 `json:"id"`
	PatientDemographics
	SocialSecurityNumber string `json:"social_security_number"`

	extra map[string]json.RawMessage
}

func (p *Patient) UnmarshalJSON(data []byte) error {
	type plain Patient
	var fields plain
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*p = Patient(fields)
	p.extra = raw
	return nil
}

func (p Patient) MarshalJSON() ([]byte, error) {
	type plain Patient
	known, err := json.Marshal(plain(p))
	if err != nil {
		return nil, err
	}
	if len(p.extra) == 0 {
		return known, nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(known, &fields); err != nil {
		return nil, err
	}

	merged := make(map[string]json.RawMessage, len(p.extra)+len(fields))
	for k, v := range p.extra {
		merged[k] = v
	}
	for k, v := range fields {
		// A null upstream decodes to ""; left empty it goes back as null.
		if string(v) == `""` && bytes.Equal(bytes.TrimSpace(p.extra[k]), []byte("null")) {
			continue
		}
		merged[k] = v
	}
	return json.Marshal(merged)
}

// View strips the secret identifier before the record leaves the service.
func (p Patient) View() PatientView {
	return PatientView{ID: p.ID, PatientDemographics: p.PatientDemographics}
}

type PatientView struct {
	ID int64 `json:"id"`
	PatientDemographics
}

// PatientFilter is passed to the upstream patient search, which matches
// loosely (case-insensitive, partial).
type PatientFilter struct {
	FirstName string
	LastName  string
}

type UpdatePatientRequest struct {
	PatientID int64 `form:"patient-id" json:"patient_id" binding:"required"`
	PatientDemographics
}
