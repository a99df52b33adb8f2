package flow

import "github.com/ecohearing/EcoHearing/internal/models"

// BuildPayload maps accepted answers onto the canonical named-field
// payload handed to the results stage. File answers never transfer. The
// installation-status answer (step 6) is collected in the exchange log but
// deliberately has no payload field, and the terminal submit step carries
// no data. Aggregation is pure: the same answer map always yields the same
// payload.
func BuildPayload(answers map[int]models.Answer, addressFragment string) models.Payload {
	var p models.Payload
	for id, answer := range answers {
		if answer.IsFile() {
			continue
		}
		switch id {
		case StepBillTier:
			p.ElectricityBillTier = answer.Text
		case StepHousingType:
			p.HousingType = answer.Text
		case StepPostalCode:
			p.PostalCode = answer.Text
		case StepAddress:
			p.Address = addressFragment + answer.Text
		case StepName:
			p.Name = answer.Text
		case StepPhone:
			p.Phone = answer.Text
		}
	}
	return p
}
