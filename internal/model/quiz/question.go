package quiz

// Option is one selectable answer. Options are ordered from most to least stressed.
type Option struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Question is one item of the self-assessment.
type Question struct {
	ID      string   `json:"id"`
	Text    string   `json:"text"`
	Options []Option `json:"options"`
}

// Result summarises a completed assessment.
type Result struct {
	Score       int    `json:"score"`
	MaxScore    int    `json:"maxScore"`
	Percentage  int    `json:"percentage"`
	Feedback    string `json:"feedback"`
	Advice      string `json:"advice,omitempty"`
	AdviceError string `json:"adviceError,omitempty"`
}

// Seed returns the stress assessment questions.
func Seed() []Question {
	return []Question{
		{
			ID:   "q1",
			Text: "Bạn có thường xuyên cảm thấy khó ngủ hoặc ngủ không ngon giấc không?",
			Options: []Option{
				{ID: "q1o1", Text: "Rất thường xuyên"},
				{ID: "q1o2", Text: "Thỉnh thoảng"},
				{ID: "q1o3", Text: "Hiếm khi"},
				{ID: "q1o4", Text: "Không bao giờ"},
			},
		},
		{
			ID:   "q2",
			Text: "Bạn có dễ cảm thấy cáu kỉnh hoặc bực bội với những điều nhỏ nhặt không?",
			Options: []Option{
				{ID: "q2o1", Text: "Luôn luôn"},
				{ID: "q2o2", Text: "Thường xuyên"},
				{ID: "q2o3", Text: "Đôi khi"},
				{ID: "q2o4", Text: "Không bao giờ"},
			},
		},
		{
			ID:   "q3",
			Text: "Bạn có cảm thấy mệt mỏi, thiếu năng lượng ngay cả khi đã nghỉ ngơi đủ không?",
			Options: []Option{
				{ID: "q3o1", Text: "Đúng vậy, rất thường xuyên"},
				{ID: "q3o2", Text: "Có, nhưng không thường xuyên lắm"},
				{ID: "q3o3", Text: "Hiếm khi"},
				{ID: "q3o4", Text: "Không, tôi luôn tràn đầy năng lượng"},
			},
		},
		{
			ID:   "q4",
			Text: "Bạn có gặp khó khăn trong việc tập trung vào công việc hoặc các hoạt động hàng ngày không?",
			Options: []Option{
				{ID: "q4o1", Text: "Rất khó khăn"},
				{ID: "q4o2", Text: "Thỉnh thoảng gặp khó khăn"},
				{ID: "q4o3", Text: "Ít khi"},
				{ID: "q4o4", Text: "Hoàn toàn không"},
			},
		},
		{
			ID:   "q5",
			Text: "Bạn có cảm thấy bi quan hoặc mất hứng thú với những điều từng làm bạn vui vẻ không?",
			Options: []Option{
				{ID: "q5o1", Text: "Thường xuyên cảm thấy vậy"},
				{ID: "q5o2", Text: "Đôi khi"},
				{ID: "q5o3", Text: "Rất hiếm"},
				{ID: "q5o4", Text: "Không bao giờ"},
			},
		},
	}
}
