package question

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"
)

//go:embed poems.json
var corpusRaw []byte

// 语料是进程级的只读单例：启动后首次访问时加载一次，之后永不修改，
// 因此可以在并发请求间安全共享。
var (
	corpusOnce     sync.Once
	corpusChapters []Chapter
	corpusByOrder  map[int]*Chapter
	corpusErr      error
)

// loadCorpus 解析内嵌的语料文件并建立章节索引。
func loadCorpus() {
	if err := json.Unmarshal(corpusRaw, &corpusChapters); err != nil {
		corpusErr = fmt.Errorf("解析内嵌语料失败: %w", err)
		return
	}
	corpusByOrder = make(map[int]*Chapter, len(corpusChapters))
	for i := range corpusChapters {
		corpusByOrder[corpusChapters[i].Order] = &corpusChapters[i]
	}
}

// Corpus 返回全部章节。
func Corpus() ([]Chapter, error) {
	corpusOnce.Do(loadCorpus)
	return corpusChapters, corpusErr
}

// chapterByOrder 按章节序号查找章节，未知序号返回nil。
func chapterByOrder(order int) (*Chapter, error) {
	corpusOnce.Do(loadCorpus)
	if corpusErr != nil {
		return nil, corpusErr
	}
	return corpusByOrder[order], nil
}
