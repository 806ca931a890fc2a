package questionform

import (
	"encoding/xml"
	"errors"
)

// KeyEntry 是资格测试中一道题的正确选项。
type KeyEntry struct {
	QuestionID string
	AnswerID   string
	Score      int
}

type answerKeyXML struct {
	XMLName   xml.Name         `xml:"AnswerKey"`
	Xmlns     string           `xml:"xmlns,attr"`
	Questions []answerKeyQ     `xml:"Question"`
	Mapping   *valueMappingXML `xml:"QualificationValueMapping,omitempty"`
}

type answerKeyQ struct {
	ID     string          `xml:"QuestionIdentifier"`
	Option answerKeyOption `xml:"AnswerOption"`
}

type answerKeyOption struct {
	SelectionID string `xml:"SelectionIdentifier"`
	Score       int    `xml:"AnswerScore"`
}

type valueMappingXML struct {
	MaxSummedScore int `xml:"PercentageMapping>MaximumSummedScore"`
}

// EncodeAnswerKey 生成 AnswerKey XML：每题答对得 Score 分，总分按百分比映射为资格分值（0..100）。
func EncodeAnswerKey(entries []KeyEntry) ([]byte, error) {
	if len(entries) == 0 {
		return nil, errors.New("questionform: answer key 不能为空")
	}
	out := answerKeyXML{Xmlns: AnswerKeyNS}
	total := 0
	for _, e := range entries {
		score := e.Score
		if score <= 0 {
			score = 1
		}
		total += score
		out.Questions = append(out.Questions, answerKeyQ{
			ID:     e.QuestionID,
			Option: answerKeyOption{SelectionID: e.AnswerID, Score: score},
		})
	}
	out.Mapping = &valueMappingXML{MaxSummedScore: total}

	b, err := xml.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(header), b...), nil
}
