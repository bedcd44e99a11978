package guidance

// ParseFailureFallback is returned when the model answered but its output
// could not be decoded into a usable Guidance.
func ParseFailureFallback() Guidance {
	return Guidance{
		Verses: []Verse{{
			Reference:   "Philippians 4:6-7",
			Text:        "Do not be anxious about anything, but in every situation, by prayer and petition, with thanksgiving, present your requests to God.",
			Application: "God invites you to bring your specific concerns to Him right now.",
		}},
		Prayer:        "Lord, please provide wisdom and peace in this situation. Amen.",
		ActionStep:    "Take 5 minutes to pray and cast your cares on God.",
		Encouragement: "God is with you in this. You are not alone.",
	}
}

// CallFailureFallback is returned when the model could not be reached.
func CallFailureFallback() Guidance {
	return Guidance{
		Verses: []Verse{
			{
				Reference:   "Proverbs 3:5-6",
				Text:        "Trust in the Lord with all your heart and lean not on your own understanding; in all your ways submit to him, and he will make your paths straight.",
				Application: "Even when things are unclear, God promises to guide you as you trust Him.",
			},
			{
				Reference:   "Philippians 4:19",
				Text:        "And my God will meet all your needs according to the riches of his glory in Christ Jesus.",
				Application: "God knows your needs and will provide in His perfect timing.",
			},
		},
		Prayer:        "Lord, grant wisdom and peace in this challenging time. Guide each step with Your love. Amen.",
		ActionStep:    "Spend 10 minutes in quiet prayer, sharing your heart with God.",
		Encouragement: "God sees you, loves you, and is working all things for your good.",
	}
}
