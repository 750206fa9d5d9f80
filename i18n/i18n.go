// Package i18n localizes validation issue messages by code.
package i18n

// Translator retrieves localized messages for Issue codes. data provides
// optional metadata to embed in the message (for example "field" or
// "expected").
type Translator interface {
	Message(code string, data map[string]string) string
}

// dictTranslator is the built-in dictionary-based Translator.
type dictTranslator struct{ lang string }

func (t dictTranslator) Message(code string, data map[string]string) string {
	switch t.lang {
	case "ja":
		switch code {
		case "invalid_type":
			return "型が不正です"
		case "required":
			return "必須フィールドが不足しています"
		case "parse_error":
			return "値を変換できません"
		case "exceeded":
			return "余分な入力です"
		case "alias_conflict":
			return "別名が衝突しています"
		case "dependency_absent":
			return "依存フィールドが不足しています"
		case "discriminator_missing":
			return "識別タグがありません"
		case "discriminator_unknown":
			return "未知の識別タグです"
		case "invalid_instance":
			return "レシーバの型が不正です"
		case "deprecated":
			return "非推奨のフィールドです"
		case "too_many_properties":
			return "プロパティが多すぎます"
		case "too_few_properties":
			return "プロパティが少なすぎます"
		case "constraint":
			return "制約違反です"
		}
	default: // "en"
		switch code {
		case "invalid_type":
			return "invalid type"
		case "required":
			return "required field missing"
		case "parse_error":
			return "value cannot be coerced"
		case "exceeded":
			return "unexpected input"
		case "alias_conflict":
			return "alias conflict"
		case "dependency_absent":
			return "dependent field missing"
		case "discriminator_missing":
			return "discriminator tag missing"
		case "discriminator_unknown":
			return "unknown discriminator tag"
		case "invalid_instance":
			return "wrong receiver type"
		case "deprecated":
			return "deprecated field"
		case "too_many_properties":
			return "too many properties"
		case "too_few_properties":
			return "too few properties"
		case "constraint":
			return "constraint violated"
		}
	}
	return code
}

var currentTranslator Translator = dictTranslator{lang: "en"}

// SetLanguage switches the built-in Translator language ("en"/"ja").
func SetLanguage(lang string) {
	if lang != "ja" {
		lang = "en"
	}
	currentTranslator = dictTranslator{lang: lang}
}

// SetTranslator replaces the Translator implementation (not limited to the
// dictionary version).
func SetTranslator(tr Translator) {
	if tr == nil {
		currentTranslator = dictTranslator{lang: "en"}
		return
	}
	currentTranslator = tr
}

// T fetches a message for the given code using the current Translator.
func T(code string, data map[string]string) string { return currentTranslator.Message(code, data) }
