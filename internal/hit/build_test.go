package hit

import (
	"encoding/xml"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
)

type formOut struct {
	Overview struct {
		Title     string   `xml:"Title"`
		Formatted []string `xml:"FormattedContent"`
	} `xml:"Overview"`
	Questions []struct {
		ID        string `xml:"QuestionIdentifier"`
		Formatted string `xml:"QuestionContent>FormattedContent"`
	} `xml:"Question"`
}

func urls(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("https://img.test/pair-%d.jpg", i)
	}
	return out
}

func parse(t *testing.T, s Spec) formOut {
	t.Helper()
	var out formOut
	if err := xml.Unmarshal([]byte(s.Question), &out); err != nil {
		t.Fatalf("XML 解析失败：%v", err)
	}
	return out
}

func imgSrc(t *testing.T, fragment string) string {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		t.Fatalf("goquery 解析失败：%v", err)
	}
	src, _ := doc.Find("img").Attr("src")
	return src
}

func TestBuild_Ranking_SourceFirstThenQuestionsInOrder(t *testing.T) {
	s, err := Build(Ranking, "https://img.test/src.jpg", urls(10))
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	out := parse(t, s)

	if out.Overview.Title != "Photo Quality Ranking" {
		t.Fatalf("overview title 不符合预期：%q", out.Overview.Title)
	}
	if len(out.Overview.Formatted) != 1+len(Ranking.Overview) {
		t.Fatalf("overview 段落数不符合预期：%d", len(out.Overview.Formatted))
	}
	if !strings.HasPrefix(out.Overview.Formatted[0], "Source Image: ") || imgSrc(t, out.Overview.Formatted[0]) != "https://img.test/src.jpg" {
		t.Fatalf("overview 首段必须是源图：%q", out.Overview.Formatted[0])
	}

	if len(out.Questions) != 10 {
		t.Fatalf("期望 10 题，实际 %d", len(out.Questions))
	}
	wantIDs := make([]string, 10)
	for i, q := range out.Questions {
		wantIDs[i] = fmt.Sprintf("photo_pair_%d", i)
		if q.ID != wantIDs[i] {
			t.Fatalf("第 %d 题标识不符合预期：%q", i, q.ID)
		}
		if got := imgSrc(t, q.Formatted); got != fmt.Sprintf("https://img.test/pair-%d.jpg", i) {
			t.Fatalf("第 %d 题图片顺序不符合预期：%q", i, got)
		}
	}
	if !reflect.DeepEqual(s.QuestionIDs, wantIDs) {
		t.Fatalf("QuestionIDs 不符合预期：%v", s.QuestionIDs)
	}
	if s.Reward != "0.04" || s.Title != "Photo Quality Ranking" {
		t.Fatalf("固定元数据不符合预期：%+v", s.Template)
	}
}

func TestBuild_Cropping_NoSourceImage(t *testing.T) {
	s, err := Build(Cropping, "ignored", urls(2))
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	out := parse(t, s)
	if len(out.Overview.Formatted) != len(Cropping.Overview) {
		t.Fatalf("cropping overview 不应包含源图：%v", out.Overview.Formatted)
	}
	for _, f := range out.Overview.Formatted {
		if strings.Contains(f, "<img") {
			t.Fatalf("cropping overview 不应包含图片：%q", f)
		}
	}
	if len(out.Questions) != 2 || out.Questions[1].ID != "photo_pair_1" {
		t.Fatalf("题目不符合预期：%+v", out.Questions)
	}
}

func TestBuild_Errors(t *testing.T) {
	if _, err := Build(Cropping, "", nil); err == nil {
		t.Fatalf("空 batch 应报错")
	}
	if _, err := Build(Cropping, "", urls(11)); err == nil {
		t.Fatalf("超过 10 题应报错")
	}
	if _, err := Build(Ranking, " ", urls(1)); err == nil {
		t.Fatalf("ranking 缺少源图应报错")
	}
}
