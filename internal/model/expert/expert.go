package expert

// Expert is a support specialist a father can contact.
type Expert struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Specialty string `json:"specialty"`
	Phone     string `json:"phone"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatarUrl"`
	// Intro is the first message the expert sends when a conversation opens.
	Intro string `json:"intro"`
	// Reply is the holding message sent after each user message.
	Reply string `json:"reply"`
}

// Seed provides the default expert directory.
func Seed() []Expert {
	return []Expert{
		{
			ID:        "expert1",
			Name:      "BS. Nguyễn Văn A",
			Specialty: "Chuyên gia tâm lý Gia đình",
			Phone:     "090xxxxxxx",
			Email:     "bs.nguyenvana@dadmind.com",
			AvatarURL: "/static/avatars/expert.png",
			Intro:     "Xin chào bạn, tôi là BS. Nguyễn Văn A. Rất vui được hỗ trợ bạn. Bạn có thể chia sẻ vấn đề của mình.",
			Reply:     "Cảm ơn bạn đã chia sẻ. Tôi đang xem xét thông tin của bạn...",
		},
	}
}
