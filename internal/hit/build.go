package hit

import (
	"errors"
	"fmt"
	"strings"

	"github.com/John-Robertt/photohit/internal/domain"
	"github.com/John-Robertt/photohit/internal/questionform"
)

// Spec 是一次 CreateHIT 的载荷（固定元数据 + 编码好的 QuestionForm）。
type Spec struct {
	Template
	// Question 是 QuestionForm XML。
	Question string
	// QuestionIDs 按题号排列；下标 p 即条目在 batch 内的 question_idx。
	QuestionIDs []string
}

// QuestionID 返回 batch 内第 i 题的标识；答案回收时据此对回条目。
func QuestionID(i int) string { return fmt.Sprintf("photo_pair_%d", i) }

// Build 把一组（≤ BatchSize）图片 URL 组装成 HIT 载荷。纯函数：不做网络/磁盘 I/O。
//
// sourceURL 仅在 t.ShowSource=true 时使用，且此时不能为空。
func Build(t Template, sourceURL string, urls []string) (Spec, error) {
	if len(urls) == 0 {
		return Spec{}, errors.New("hit: batch 为空")
	}
	if len(urls) > domain.BatchSize {
		return Spec{}, fmt.Errorf("hit: batch 超过 %d 题：%d", domain.BatchSize, len(urls))
	}

	ov := &questionform.Overview{Items: []questionform.Content{questionform.Title(t.Title)}}
	if t.ShowSource {
		if strings.TrimSpace(sourceURL) == "" {
			return Spec{}, errors.New("hit: 缺少源图 URL")
		}
		src, err := questionform.Image(sourcePrefix, sourceURL)
		if err != nil {
			return Spec{}, err
		}
		ov.Items = append(ov.Items, questionform.FormattedContent(src))
	}
	for _, para := range t.Overview {
		x, err := questionform.Formatted(para)
		if err != nil {
			return Spec{}, err
		}
		ov.Items = append(ov.Items, questionform.FormattedContent(x))
	}

	form := questionform.Form{Overview: ov}
	ids := make([]string, 0, len(urls))
	for i, u := range urls {
		id := QuestionID(i)
		q, err := PairQuestion(id, u)
		if err != nil {
			return Spec{}, err
		}
		ids = append(ids, id)
		form.Questions = append(form.Questions, q)
	}

	b, err := questionform.Encode(form)
	if err != nil {
		return Spec{}, err
	}
	return Spec{Template: t, Question: string(b), QuestionIDs: ids}, nil
}

// PairQuestion 构造一道“左/右哪张更好”的必答单选题；url 指向拼好的左右对比图。
func PairQuestion(id, url string) (questionform.Question, error) {
	img, err := questionform.Image("", url)
	if err != nil {
		return questionform.Question{}, err
	}
	return questionform.SingleChoice(id, []questionform.Content{
		questionform.Title(questionTitle),
		questionform.Text(questionText),
		questionform.FormattedContent(img),
	}, questionform.LeftRight), nil
}
