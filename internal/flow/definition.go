// Package flow implements the hearing flow: the fixed step catalogue, the
// session state machine that presents one step at a time, and the
// aggregation of accepted answers into the canonical payload.
package flow

import (
	"regexp"

	"github.com/ecohearing/EcoHearing/internal/models"
)

// Step ids in presentation order. Ids are stable; the catalogue is never
// mutated at runtime.
const (
	StepBillTier     = 1
	StepHousingType  = 2
	StepPostalCode   = 3
	StepAddress      = 4
	StepBillUpload   = 5
	StepInstallation = 6
	StepName         = 7
	StepPhone        = 8
	StepSubmit       = 9
)

// Validation hints shown when a free-text response is rejected.
const (
	PostalCodeHint = "郵便番号は「123-4567」または「1234567」の形式で入力してください"
	PhoneHint      = "電話番号はハイフンなしの11桁で入力してください"
	GenericHint    = "入力内容をご確認ください"
)

var (
	postalCodePattern = regexp.MustCompile(`^\d{3}-?\d{4}$`)
	phonePattern      = regexp.MustCompile(`^\d{11}$`)
)

// ValidPostalCode accepts a 3-digit, optional-hyphen, 4-digit postal code.
func ValidPostalCode(s string) bool { return postalCodePattern.MatchString(s) }

// ValidPhone accepts exactly 11 digits with no separators.
func ValidPhone(s string) bool { return phonePattern.MatchString(s) }

// Definition returns the fixed hearing catalogue: nine steps presented in
// order. Callers must treat the returned steps as read-only.
func Definition() []models.Step {
	return []models.Step{
		models.ChoiceStep{
			StepID:     StepBillTier,
			PromptText: "毎月の電気代はおいくらですか?",
			Options: []string{
				"20,000円以上",
				"15,000円〜19,999円",
				"10,000円〜14,999円",
				"9,999円以下",
			},
		},
		models.ChoiceStep{
			StepID:     StepHousingType,
			PromptText: "お住まいのタイプを教えてください",
			Options: []string{
				"平屋",
				"2階建て",
				"3階建て以上",
				"マンション",
				"その他",
			},
			Annotation: "※持ち家にお住まいの方が対象です",
		},
		models.TextStep{
			StepID:     StepPostalCode,
			PromptText: "設置先の郵便番号を入力してください",
			Validate:   ValidPostalCode,
			RejectHint: PostalCodeHint,
		},
		models.TextStep{
			StepID:     StepAddress,
			PromptText: "続きのご住所を入力してください",
			AutoFill:   true,
			Supplement: "郵便番号から市区町村までを自動で補完します",
			Extra:      "番地・建物名までご入力ください",
		},
		models.FileStep{
			StepID:      StepBillUpload,
			PromptText:  "電気料金の明細書をアップロードしてください",
			AcceptTypes: []string{"image/jpeg", "image/png", "application/pdf"},
		},
		models.ChoiceStep{
			StepID:     StepInstallation,
			PromptText: "太陽光発電・蓄電池の導入状況を教えてください",
			Options: []string{
				"太陽光のみ導入済み",
				"蓄電池のみ導入済み",
				"どちらも導入していない",
			},
			Single: true,
		},
		models.TextStep{
			StepID:     StepName,
			PromptText: "お名前を入力してください",
		},
		models.TextStep{
			StepID:     StepPhone,
			PromptText: "お電話番号を入力してください(ハイフンなし)",
			Validate:   ValidPhone,
			RejectHint: PhoneHint,
		},
		models.ChoiceStep{
			StepID:        StepSubmit,
			PromptText:    "ご入力ありがとうございました。診断結果をご確認ください",
			Options:       []string{"診断結果を見る"},
			EmphasisColor: "#f59e0b",
		},
	}
}
