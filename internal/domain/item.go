package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// HITPending 是 hit_id 的“未提交”哨兵值。
const HITPending = "n/a"

// BatchSize 是每个 HIT 承载的题目数（每题对应一个条目）。
const BatchSize = 10

// ItemState 是两类条目共享的提交状态字段。
//
// 约束：条目只会从“未提交”迁移到“已提交”，不会反向；NumAssignment 只做累加。
type ItemState struct {
	URL           string `json:"url"`
	HITID         string `json:"hit_id"`
	QuestionIdx   int    `json:"question_idx"`
	NumAssignment int    `json:"num_assignment"`
}

// Submitted 判断条目是否已经关联到某个 HIT。
func (s ItemState) Submitted() bool { return s.HITID != HITPending }

// Commit 把一次成功提交写回条目：覆盖 hit_id/question_idx，累加 num_assignment。
func (s *ItemState) Commit(hitID string, questionIdx, assignments int) {
	s.HITID = hitID
	s.QuestionIdx = questionIdx
	s.NumAssignment += assignments
}

// PhotoID 是源图标识。迁移来的数据里 photo_id 既有字符串也有数字（Flickr id），读入时统一为字符串，写回也是字符串。
type PhotoID string

func (p *PhotoID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*p = PhotoID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("photo_id 必须是字符串或数字：%s", b)
	}
	*p = PhotoID(n.String())
	return nil
}

// RankItem 是 ranking 流程的一条记录（源图的一个裁切）。
// PhotoID 用于反查源图 URL（展示在 HIT 的 overview 中）。
type RankItem struct {
	ItemState
	PhotoID PhotoID `json:"photo_id"`
}

func (r RankItem) Pending() bool { return r.HITID == HITPending }

// CropItem 是 cropping 流程的一条记录（一张完整照片）。
// Disabled=true 的条目无论 hit_id 为何都不会被选中。
type CropItem struct {
	ItemState
	Disabled bool `json:"disabled"`
}

func (c CropItem) Pending() bool { return c.HITID == HITPending && !c.Disabled }

// Batch 是一次提交所包含的条目下标（按选择顺序；题号即切片下标）。
type Batch struct {
	Index   int
	Indexes []int
}
