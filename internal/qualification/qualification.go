package qualification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/mturk"
	"github.com/aws/aws-sdk-go-v2/service/mturk/types"

	"github.com/John-Robertt/photohit/internal/hit"
	"github.com/John-Robertt/photohit/internal/questionform"
)

// Definition 描述一个具名资格类型及其准入门槛。
type Definition struct {
	Name        string
	Description string
	Keywords    []string
	// Query 是检索已有资格类型时的关键字（平台按名称/描述模糊匹配，再按 Name 精确比对）。
	Query string

	TestTitle    string
	TestDuration time.Duration

	// MinScore 是准入门槛：资格分值必须严格大于该值（分值范围 0..100）。
	MinScore int
}

// PhotoQuality 是 ranking / cropping 共用的资格类型。
var PhotoQuality = Definition{
	Name:         "Qualification Type for Photo Quality Assessment",
	Description:  "A qualification test in which you are given 10 pairs of photos and asked to pick the more beautiful one.",
	Keywords:     []string{"photo", "quality", "ranking"},
	Query:        "Photo",
	TestTitle:    "Qualification test for photo quality assessment.",
	TestDuration: 30 * time.Minute,
	MinScore:     80,
}

// TestQuestion 是资格测试的一道题：一张左右对比图 + 正确选项（"0"=Left，"1"=Right）。
type TestQuestion struct {
	URL    string `json:"url"`
	Answer string `json:"answer"`
}

// LoadTest 读取资格测试题目文件（JSON 数组）。
func LoadTest(path string) ([]TestQuestion, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var qs []TestQuestion
	if err := json.Unmarshal(b, &qs); err != nil {
		return nil, fmt.Errorf("解析资格测试 %q 失败：%w", path, err)
	}
	if len(qs) == 0 {
		return nil, fmt.Errorf("资格测试 %q 没有题目", path)
	}
	for i, q := range qs {
		if strings.TrimSpace(q.URL) == "" {
			return nil, fmt.Errorf("资格测试第 %d 题缺少 url", i)
		}
		if !validAnswer(q.Answer) {
			return nil, fmt.Errorf("资格测试第 %d 题 answer 只能是 0 或 1，实际是 %q", i, q.Answer)
		}
	}
	return qs, nil
}

func validAnswer(a string) bool {
	for _, o := range questionform.LeftRight {
		if a == o.ID {
			return true
		}
	}
	return false
}

func testQuestionID(i int) string { return fmt.Sprintf("qual_pair_%d", i) }

// BuildTest 生成资格测试的 QuestionForm 与 AnswerKey（每题 1 分，按百分比映射为 0..100）。
func BuildTest(title string, qs []TestQuestion) (test string, answerKey string, err error) {
	if len(qs) == 0 {
		return "", "", errors.New("资格测试没有题目")
	}
	intro, err := questionform.Formatted("For each question, please choose either the left or right image which you think is more beautiful in terms of its <u>composition</u>.")
	if err != nil {
		return "", "", err
	}
	form := questionform.Form{Overview: &questionform.Overview{Items: []questionform.Content{
		questionform.Title(title),
		questionform.FormattedContent(intro),
	}}}
	keys := make([]questionform.KeyEntry, 0, len(qs))
	for i, q := range qs {
		id := testQuestionID(i)
		pq, err := hit.PairQuestion(id, q.URL)
		if err != nil {
			return "", "", err
		}
		form.Questions = append(form.Questions, pq)
		keys = append(keys, questionform.KeyEntry{QuestionID: id, AnswerID: q.Answer, Score: 1})
	}

	tb, err := questionform.Encode(form)
	if err != nil {
		return "", "", err
	}
	kb, err := questionform.EncodeAnswerKey(keys)
	if err != nil {
		return "", "", err
	}
	return string(tb), string(kb), nil
}

// API 是资格类型查找/创建所需的平台操作（SDK 的 *mturk.Client 满足）。
type API interface {
	ListQualificationTypes(ctx context.Context, params *mturk.ListQualificationTypesInput, optFns ...func(*mturk.Options)) (*mturk.ListQualificationTypesOutput, error)
	CreateQualificationType(ctx context.Context, params *mturk.CreateQualificationTypeInput, optFns ...func(*mturk.Options)) (*mturk.CreateQualificationTypeOutput, error)
}

// Result 是 Resolve 的结果；Created=true 表示本次新建。
type Result struct {
	ID      string
	Created bool
}

// Resolve 幂等地“查找或创建”具名资格类型：已存在则复用，否则用 loadTest 提供的题目新建。
// loadTest 只在需要新建时调用。
func Resolve(ctx context.Context, api API, def Definition, loadTest func() ([]TestQuestion, error)) (Result, error) {
	if api == nil {
		return Result{}, errors.New("qualification: api 不能为空")
	}
	id, err := find(ctx, api, def)
	if err != nil {
		return Result{}, err
	}
	if id != "" {
		return Result{ID: id}, nil
	}

	if loadTest == nil {
		return Result{}, errors.New("qualification: 资格类型不存在且未提供测试题目")
	}
	qs, err := loadTest()
	if err != nil {
		return Result{}, err
	}
	test, key, err := BuildTest(def.TestTitle, qs)
	if err != nil {
		return Result{}, err
	}
	out, err := api.CreateQualificationType(ctx, &mturk.CreateQualificationTypeInput{
		Name:                    aws.String(def.Name),
		Description:             aws.String(def.Description),
		Keywords:                aws.String(strings.Join(def.Keywords, ",")),
		QualificationTypeStatus: types.QualificationTypeStatusActive,
		Test:                    aws.String(test),
		AnswerKey:               aws.String(key),
		TestDurationInSeconds:   aws.Int64(int64(def.TestDuration / time.Second)),
	})
	if err != nil {
		return Result{}, err
	}
	if out == nil || out.QualificationType == nil || aws.ToString(out.QualificationType.QualificationTypeId) == "" {
		return Result{}, errors.New("qualification: 平台未返回 QualificationTypeId")
	}
	return Result{ID: aws.ToString(out.QualificationType.QualificationTypeId), Created: true}, nil
}

func find(ctx context.Context, api API, def Definition) (string, error) {
	in := &mturk.ListQualificationTypesInput{
		Query:               aws.String(def.Query),
		MustBeRequestable:   aws.Bool(true),
		MustBeOwnedByCaller: aws.Bool(true),
		MaxResults:          aws.Int32(100),
	}
	for {
		out, err := api.ListQualificationTypes(ctx, in)
		if err != nil {
			return "", err
		}
		for _, qt := range out.QualificationTypes {
			if aws.ToString(qt.Name) == def.Name {
				return aws.ToString(qt.QualificationTypeId), nil
			}
		}
		next := aws.ToString(out.NextToken)
		if next == "" || next == aws.ToString(in.NextToken) {
			return "", nil
		}
		in.NextToken = aws.String(next)
	}
}

// Requirement 把资格类型转为 HIT 的准入条件：分值 > MinScore 才能接单。
// 只限制接单（Accept），不限制预览。
func Requirement(id string, def Definition) types.QualificationRequirement {
	return types.QualificationRequirement{
		QualificationTypeId: aws.String(id),
		Comparator:          types.ComparatorGreaterThan,
		IntegerValues:       []int32{int32(def.MinScore)},
		ActionsGuarded:      types.HITAccessActionsAccept,
	}
}
