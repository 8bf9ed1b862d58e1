package workflow

// TestModeCounts 按测试/真实模式计数。
type TestModeCounts struct {
	Test int `json:"test"`
	Real int `json:"real"`
}

// Summary /workflows 与 /patents 返回的聚合统计。
type Summary struct {
	Total      int            `json:"total"`
	ByTopic    map[string]int `json:"by_topic"`
	ByStatus   map[string]int `json:"by_status"`
	ByTestMode TestModeCounts `json:"by_test_mode"`
	ByType     map[string]int `json:"by_type"`
}

// Summarize 汇总一组工作流。
func Summarize(list []*Workflow) Summary {
	s := Summary{
		Total:    len(list),
		ByTopic:  make(map[string]int),
		ByStatus: make(map[string]int),
		ByType:   make(map[string]int),
	}
	for _, w := range list {
		s.ByTopic[w.Topic]++
		s.ByStatus[string(w.Status)]++
		s.ByType[string(w.Type)]++
		if w.TestMode {
			s.ByTestMode.Test++
		} else {
			s.ByTestMode.Real++
		}
	}
	return s
}
