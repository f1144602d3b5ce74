package stubserver

// cannedHealthData mirrors the aggregator's response shape: NHIS checkup
// records with Korean field labels, most recent first, plus the prescription
// list.
func cannedHealthData() map[string]any {
	return map[string]any{
		"status": "SUCCESS",
		"healthCheckupData": []map[string]any{
			{
				"검진일자":    "20230726",
				"검진기관명":   "서울의료원",
				"신장":      "175",
				"체중":      "70",
				"혈압":      "120/80",
				"혈당":      "95",
				"혈청크레아티닌": "1.4",
				"신사구체여과율": "55",
			},
			{
				"검진일자":    "20210310",
				"검진기관명":   "강남건강검진센터",
				"신장":      "175",
				"체중":      "68",
				"혈압":      "118/78",
				"혈당":      "92",
				"혈청크레아티닌": "1.1",
				"신사구체여과율": "72",
			},
		},
		"medicationData": map[string]any{
			"ResultList": []map[string]any{
				{"처방약품명": "암로디핀정", "약품효능": "혈압강하제"},
			},
		},
	}
}
