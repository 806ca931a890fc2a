package questionform

import (
	"bytes"
	"encoding/xml"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
)

type formOut struct {
	XMLName  xml.Name `xml:"QuestionForm"`
	Overview struct {
		Title     string   `xml:"Title"`
		Formatted []string `xml:"FormattedContent"`
	} `xml:"Overview"`
	Questions []struct {
		ID       string `xml:"QuestionIdentifier"`
		Required bool   `xml:"IsRequired"`
		Content  struct {
			Title     string `xml:"Title"`
			Text      string `xml:"Text"`
			Formatted string `xml:"FormattedContent"`
		} `xml:"QuestionContent"`
		Min        int    `xml:"AnswerSpecification>SelectionAnswer>MinSelectionCount"`
		Max        int    `xml:"AnswerSpecification>SelectionAnswer>MaxSelectionCount"`
		Style      string `xml:"AnswerSpecification>SelectionAnswer>StyleSuggestion"`
		Selections []struct {
			ID   string `xml:"SelectionIdentifier"`
			Text string `xml:"Text"`
		} `xml:"AnswerSpecification>SelectionAnswer>Selections>Selection"`
	} `xml:"Question"`
}

func TestEncode_OverviewAndQuestions(t *testing.T) {
	img, err := Image("", "https://img.test/a.jpg?x=1&y=2")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}

	f := Form{
		Overview: &Overview{Items: []Content{Title("Photo Quality Ranking"), FormattedContent("<b>hi</b>")}},
		Questions: []Question{
			SingleChoice("photo_pair_0", []Content{Title("Question"), Text("pick"), FormattedContent(img)}, LeftRight),
		},
	}
	b, err := Encode(f)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if !bytes.HasPrefix(b, []byte(`<?xml version="1.0" encoding="UTF-8"?>`)) {
		t.Fatalf("缺少 XML 头：%s", b)
	}
	if !bytes.Contains(b, []byte(`xmlns="`+QuestionFormNS+`"`)) {
		t.Fatalf("缺少 QuestionForm 命名空间：%s", b)
	}
	if !bytes.Contains(b, []byte("<![CDATA[<b>hi</b>]]>")) {
		t.Fatalf("formatted content 应以 CDATA 输出：%s", b)
	}

	var out formOut
	if err := xml.Unmarshal(b, &out); err != nil {
		t.Fatalf("XML 解析失败：%v\n%s", err, b)
	}
	if out.Overview.Title != "Photo Quality Ranking" || len(out.Overview.Formatted) != 1 {
		t.Fatalf("overview 不符合预期：%+v", out.Overview)
	}
	if len(out.Questions) != 1 {
		t.Fatalf("期望 1 道题，实际 %d", len(out.Questions))
	}
	q := out.Questions[0]
	if q.ID != "photo_pair_0" || !q.Required || q.Min != 1 || q.Max != 1 || q.Style != "radiobutton" {
		t.Fatalf("题目结构不符合预期：%+v", q)
	}
	if len(q.Selections) != 2 || q.Selections[0].ID != "0" || q.Selections[0].Text != "Left" || q.Selections[1].ID != "1" || q.Selections[1].Text != "Right" {
		t.Fatalf("选项不符合预期：%+v", q.Selections)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(q.Content.Formatted))
	if err != nil {
		t.Fatalf("goquery 解析失败：%v", err)
	}
	if src, _ := doc.Find("img").Attr("src"); src != "https://img.test/a.jpg?x=1&y=2" {
		t.Fatalf("img src 不符合预期：%q", src)
	}
}

func TestEncode_RejectsDuplicateAndEmptyIdentifiers(t *testing.T) {
	q := SingleChoice("q", nil, LeftRight)
	if _, err := Encode(Form{Questions: []Question{q, q}}); err == nil {
		t.Fatalf("重复标识应报错")
	}
	if _, err := Encode(Form{Questions: []Question{SingleChoice(" ", nil, LeftRight)}}); err == nil {
		t.Fatalf("空标识应报错")
	}
	if _, err := Encode(Form{}); err == nil {
		t.Fatalf("空表单应报错")
	}
}

func TestEncode_NoOverviewOmitted(t *testing.T) {
	b, err := Encode(Form{Questions: []Question{SingleChoice("q", nil, LeftRight)}})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if bytes.Contains(b, []byte("<Overview")) {
		t.Fatalf("未设置 overview 时不应输出：%s", b)
	}
}

func TestImage_SelfClosedAndEscaped(t *testing.T) {
	got, err := Image("Source Image: ", `https://img.test/a.jpg?x=1&y="2"`)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if !strings.HasPrefix(got, "Source Image: <img") {
		t.Fatalf("前缀缺失：%q", got)
	}
	if !strings.HasSuffix(got, "/>") {
		t.Fatalf("img 必须自闭合（XHTML）：%q", got)
	}
	if strings.Contains(got, `&y=`) {
		t.Fatalf("& 必须转义：%q", got)
	}
	if !strings.Contains(got, `alt="Image not shown correctly!"`) {
		t.Fatalf("缺少 alt：%q", got)
	}
}

func TestFormatted_ClosesTags(t *testing.T) {
	got, err := Formatted("<b>Hints: <u>composition</u>")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if got != "<b>Hints: <u>composition</u></b>" {
		t.Fatalf("规范化结果不符合预期：%q", got)
	}
}

func TestEncodeAnswerKey_PercentageMapping(t *testing.T) {
	b, err := EncodeAnswerKey([]KeyEntry{
		{QuestionID: "q_0", AnswerID: "0"},
		{QuestionID: "q_1", AnswerID: "1", Score: 2},
	})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	var out struct {
		Questions []struct {
			ID    string `xml:"QuestionIdentifier"`
			Sel   string `xml:"AnswerOption>SelectionIdentifier"`
			Score int    `xml:"AnswerOption>AnswerScore"`
		} `xml:"Question"`
		Max int `xml:"QualificationValueMapping>PercentageMapping>MaximumSummedScore"`
	}
	if err := xml.Unmarshal(b, &out); err != nil {
		t.Fatalf("XML 解析失败：%v", err)
	}
	if len(out.Questions) != 2 || out.Questions[0].Score != 1 || out.Questions[1].Sel != "1" {
		t.Fatalf("answer key 不符合预期：%+v", out.Questions)
	}
	if out.Max != 3 {
		t.Fatalf("MaximumSummedScore 期望 3，实际 %d", out.Max)
	}
	if _, err := EncodeAnswerKey(nil); err == nil {
		t.Fatalf("空 answer key 应报错")
	}
}
