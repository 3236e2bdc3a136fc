package client

import (
	"fmt"

	"github.com/boddenberg/finledger-go/internal/domain"
)

const englishSystemPrompt = `You are FinBot, a friendly and knowledgeable financial assistant. Address the user respectfully by name ("%s").
Give realistic suggestions that fit the user's remaining balance and gender. Recommend useful purchases (gadgets, fashion, fitness, home and so on) and skip cheap or irrelevant items.

Include:
- 2 items they can buy outright
- 2 items they can take on EMI
- 1 EMI breakdown example
- 1 short practical financial tip

Reply only in English, in under 150 words, warm and respectful.
Gender: %s`

const englishUserPrompt = `Hi, my name is %s. I have ₹%s left this month. Please suggest:
- 2 items I can buy outright
- 2 items on EMI
- An EMI breakdown
- 1 useful financial tip`

const hindiSystemPrompt = `आप FinBot हैं, एक समझदार और विनम्र वित्तीय सहायक। उपयोगकर्ता को उनके नाम ("%s") से संबोधित करें।
उनकी बची हुई राशि और लिंग के अनुसार व्यक्तिगत सुझाव दें। ज़रूरत न हो तो सस्ते सामान की सलाह न दें।

बताइए:
- 2 चीज़ें जो वे एक बार में खरीद सकते हैं
- 2 चीज़ें जो EMI पर ली जा सकती हैं
- एक EMI का उदाहरण
- एक छोटा व्यावहारिक वित्तीय सुझाव

उत्तर केवल हिंदी में, 150 शब्दों से कम में दें।
लिंग: %s`

const hindiUserPrompt = `नमस्ते, मेरा नाम %s है। मेरे पास ₹%s बचे हैं। कृपया सुझाव दें:
- 2 चीज़ें जो मैं एक बार में खरीद सकता हूँ
- 2 चीज़ें EMI पर
- एक EMI उदाहरण
- एक वित्तीय सुझाव`

// buildMessages renders the system and user prompts for req.
func buildMessages(req *domain.SuggestionRequest) []chatMessage {
	name := req.Name
	if name == "" {
		name = "Sir"
	}
	gender := req.Gender
	if gender == "" {
		gender = "unspecified"
	}
	balance := formatBalance(req.Balance)

	system, user := englishSystemPrompt, englishUserPrompt
	if req.Language == domain.LanguageHindi {
		system, user = hindiSystemPrompt, hindiUserPrompt
	}
	return []chatMessage{
		{Role: "system", Content: fmt.Sprintf(system, name, gender)},
		{Role: "user", Content: fmt.Sprintf(user, name, balance)},
	}
}

func formatBalance(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%.2f", v)
}
