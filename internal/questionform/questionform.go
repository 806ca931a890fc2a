package questionform

import (
	"encoding/xml"
	"errors"
	"fmt"
	"strings"
)

const (
	// QuestionFormNS 是 CreateHIT / CreateQualificationType 接受的 QuestionForm schema。
	QuestionFormNS = "http://mechanicalturk.amazonaws.com/AWSMechanicalTurkDataSchemas/2017-11-06/QuestionForm.xsd"
	// AnswerKeyNS 是资格测试答案键的 schema（平台至今只有 2005-10-01 版本）。
	AnswerKeyNS = "http://mechanicalturk.amazonaws.com/AWSMechanicalTurkDataSchemas/2005-10-01/AnswerKey.xsd"
)

const header = `<?xml version="1.0" encoding="UTF-8"?>` + "\n"

// Option 是单选题的一个选项：Label 展示给 worker，ID 是回传的答案值。
type Option struct {
	Label string
	ID    string
}

// LeftRight 是成对比较题的固定选项：Left→"0"，Right→"1"。
var LeftRight = []Option{{Label: "Left", ID: "0"}, {Label: "Right", ID: "1"}}

// Content 是 Overview / QuestionContent 中的一个有序内容块。
// Title/Text 以纯文本输出，FormattedContent 以 CDATA 输出（内容须先经 Formatted 规范化）。
type Content struct {
	XMLName xml.Name
	Text    string `xml:",chardata"`
	CDATA   string `xml:",cdata"`
}

func Title(s string) Content { return Content{XMLName: xml.Name{Local: "Title"}, Text: s} }

func Text(s string) Content { return Content{XMLName: xml.Name{Local: "Text"}, Text: s} }

// FormattedContent 包装一段已规范化的 XHTML 片段。
func FormattedContent(xhtml string) Content {
	return Content{XMLName: xml.Name{Local: "FormattedContent"}, CDATA: xhtml}
}

type Overview struct {
	Items []Content
}

type Question struct {
	XMLName    xml.Name `xml:"Question"`
	Identifier string   `xml:"QuestionIdentifier"`
	IsRequired bool     `xml:"IsRequired"`
	Content    struct {
		Items []Content
	} `xml:"QuestionContent"`
	Answer answerSpec `xml:"AnswerSpecification"`
}

type answerSpec struct {
	Selection selectionAnswer `xml:"SelectionAnswer"`
}

type selectionAnswer struct {
	Min        int         `xml:"MinSelectionCount"`
	Max        int         `xml:"MaxSelectionCount"`
	Style      string      `xml:"StyleSuggestion"`
	Selections []selection `xml:"Selections>Selection"`
}

type selection struct {
	ID   string `xml:"SelectionIdentifier"`
	Text string `xml:"Text"`
}

// SingleChoice 构造一道必答的单选题（radiobutton，恰好选一项）。
func SingleChoice(id string, content []Content, options []Option) Question {
	q := Question{Identifier: id, IsRequired: true}
	q.Content.Items = append([]Content(nil), content...)
	q.Answer.Selection = selectionAnswer{Min: 1, Max: 1, Style: "radiobutton"}
	for _, o := range options {
		q.Answer.Selection.Selections = append(q.Answer.Selection.Selections, selection{ID: o.ID, Text: o.Label})
	}
	return q
}

// Form 是一份 QuestionForm：可选的 Overview + 有序题目。
type Form struct {
	Overview  *Overview
	Questions []Question
}

type formXML struct {
	XMLName  xml.Name `xml:"QuestionForm"`
	Xmlns    string   `xml:"xmlns,attr"`
	Overview *struct {
		Items []Content
	} `xml:"Overview,omitempty"`
	Questions []Question
}

// Encode 把 Form 编码为 QuestionForm XML。
//
// 约束：题目标识必须非空且在表单内唯一（平台据此把答案回对到题目）。
func Encode(f Form) ([]byte, error) {
	if len(f.Questions) == 0 {
		return nil, errors.New("questionform: 至少需要一道题")
	}
	seen := make(map[string]struct{}, len(f.Questions))
	for _, q := range f.Questions {
		id := strings.TrimSpace(q.Identifier)
		if id == "" {
			return nil, errors.New("questionform: 题目标识不能为空")
		}
		if _, ok := seen[id]; ok {
			return nil, fmt.Errorf("questionform: 重复的题目标识 %q", id)
		}
		seen[id] = struct{}{}
	}

	out := formXML{Xmlns: QuestionFormNS, Questions: f.Questions}
	if f.Overview != nil && len(f.Overview.Items) > 0 {
		out.Overview = &struct {
			Items []Content
		}{Items: f.Overview.Items}
	}

	b, err := xml.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(header), b...), nil
}
