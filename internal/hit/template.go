package hit

import "time"

const (
	defaultLifetime = 259200 * time.Second
	defaultDuration = 30 * time.Minute

	questionTitle = "Question"
	questionText  = "Please indicate which one of the following images is more beautiful."

	sourcePrefix = "Source Image: "
)

var defaultKeywords = []string{"photo", "quality", "ranking"}

// Template 是某一流程固定不变的 HIT 元数据（不随条目变化）。
type Template struct {
	Title       string
	Description string
	// Reward 是每个 assignment 的报酬（USD），按平台要求用十进制字符串表示。
	Reward             string
	AssignmentDuration time.Duration
	Lifetime           time.Duration
	Keywords           []string

	// ShowSource=true 时 overview 首段展示源图（ranking）。
	ShowSource bool
	// Overview 是 overview 中的说明段落（HTML 片段，编码前会规范化）。
	Overview []string
}

// Ranking 对应“同一源图的两个裁切，哪个构图更好”。
var Ranking = Template{
	Title:              "Photo Quality Ranking",
	Description:        "This task involves viewing pairs of pictures and judging which picture among the image pair is more beautiful.",
	Reward:             "0.04",
	AssignmentDuration: defaultDuration,
	Lifetime:           defaultLifetime,
	Keywords:           defaultKeywords,
	ShowSource:         true,
	Overview: []string{
		"Each of the following questions shows a pair of crops from the source image shown in the above.",
		"For each question, please choose either the left or right image which you think is more beautiful in terms of its <u>composition</u>.",
		"Note that it is possible that both of the cropped images do not possess a good composition. Please just select the more preferable one based on your sense of aesthetics.",
	},
}

// Cropping 对应“两张完整照片，哪张构图更好”。
var Cropping = Template{
	Title:              "Photo Quality Assessment",
	Description:        "This task involves viewing pairs of pictures and judging which picture among the image pair is more beautiful.",
	Reward:             "0.05",
	AssignmentDuration: defaultDuration,
	Lifetime:           defaultLifetime,
	Keywords:           defaultKeywords,
	Overview: []string{
		"For each question, please choose either the left or right image which you think is more beautiful in terms of its <u>composition</u>.",
		`<b>Hints: Please make your decision based on several "rules of thumb" in photography, such as rule of thirds, visual balance and golden ratio.</b>`,
		"For those hard cases, please just select your preferred image based on your sense of aesthetics.",
	},
}
