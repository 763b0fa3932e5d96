package queue

import (
	"math/rand/v2"
	"sync"

	"LyraFM/model"
)

// RepeatMode 循环模式
type RepeatMode int

const (
	RepeatOff RepeatMode = iota
	RepeatTrack
	RepeatQueue
)

// Direction 前进方向
type Direction int

const (
	Next Direction = iota
	Previous
)

// Queue 播放队列：基础顺序、游标、可选的洗牌排列和循环模式。
// 洗牌只生成索引排列，绝不破坏基础顺序。每次 Advance 恰好前进一步，
// 对高频触发的去抖是前端的责任，不在这里处理。
type Queue struct {
	mu      sync.Mutex
	items   []model.ItemId
	cursor  int  // shuffle 开启时是排列内的位置，否则是 items 下标
	empty   bool // 游标是否无效（队列为空或已走完）
	order   []int
	shuffle bool
	repeat  RepeatMode
}

// New 创建空队列
func New() *Queue {
	return &Queue{empty: true}
}

// SetItems 替换队列内容并把游标指向第一项。洗牌状态保留，
// 新内容会重新洗牌。
func (q *Queue) SetItems(items []model.ItemId) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.items = append([]model.ItemId(nil), items...)
	q.cursor = 0
	q.empty = len(q.items) == 0
	if q.shuffle {
		q.reshuffleLocked(0)
	} else {
		q.order = nil
	}
}

// Len 返回队列长度
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Current 返回游标指向的项；队列为空或已走完时 ok 为 false
func (q *Queue) Current() (model.ItemId, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.currentLocked()
}

func (q *Queue) currentLocked() (model.ItemId, bool) {
	if q.empty || len(q.items) == 0 {
		return model.InvalidItemId, false
	}
	return q.items[q.indexAtLocked(q.cursor)], true
}

// indexAtLocked 把游标位置换算为 items 下标
func (q *Queue) indexAtLocked(pos int) int {
	if q.shuffle {
		return q.order[pos]
	}
	return pos
}

// Advance 按方向前进恰好一步并返回新的当前项。
// 末尾处 repeat=Queue 回绕到开头，repeat=Track 原地返回同一项，
// repeat=Off 返回 ok=false 且队列进入空闲。开头处的 Previous 对称。
func (q *Queue) Advance(dir Direction) (model.ItemId, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 || q.empty {
		return model.InvalidItemId, false
	}

	step := 1
	if dir == Previous {
		step = -1
	}
	next := q.cursor + step

	if next < 0 || next >= len(q.items) {
		switch q.repeat {
		case RepeatTrack:
			return q.currentLocked()
		case RepeatQueue:
			next = (next + len(q.items)) % len(q.items)
		default:
			q.empty = true
			return model.InvalidItemId, false
		}
	}

	q.cursor = next
	return q.currentLocked()
}

// SetRepeat 设置循环模式
func (q *Queue) SetRepeat(mode RepeatMode) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.repeat = mode
}

// Repeat 返回循环模式
func (q *Queue) Repeat() RepeatMode {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.repeat
}

// SetShuffle 切换洗牌。开启时对当前项之外的索引重新排列，当前项
// 保持为游标目标，正在播放的曲目不会被跳过或重复。
func (q *Queue) SetShuffle(on bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if on == q.shuffle {
		return
	}

	if !on {
		// 关闭洗牌：游标换回基础顺序下标
		if !q.empty && len(q.items) > 0 {
			q.cursor = q.order[q.cursor]
		}
		q.shuffle = false
		q.order = nil
		return
	}

	current := 0
	if !q.empty && len(q.items) > 0 {
		current = q.cursor
	}
	q.shuffle = true
	q.reshuffleLocked(current)
}

// Shuffle 返回洗牌是否开启
func (q *Queue) Shuffle() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.shuffle
}

// reshuffleLocked 生成以 current（基础下标）开头的随机排列
func (q *Queue) reshuffleLocked(current int) {
	n := len(q.items)
	if n == 0 {
		q.order = nil
		return
	}

	rest := make([]int, 0, n-1)
	for i := 0; i < n; i++ {
		if i != current {
			rest = append(rest, i)
		}
	}
	rand.Shuffle(len(rest), func(i, j int) {
		rest[i], rest[j] = rest[j], rest[i]
	})

	q.order = append([]int{current}, rest...)
	q.cursor = 0
}
