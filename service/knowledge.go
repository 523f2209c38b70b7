package service

import (
	"github.com/TIANLI0/CaneScan/model"
)

var builtinDiseases = map[string]model.DiseaseRecord{
	model.LabelRust: {
		Cause:       "Fungus called Puccinia melanocephala. Thrives in warm, humid conditions.",
		Symptoms:    "Yellowish-brown pustules on leaves, stunted growth.",
		Suggestions: "Ensure proper crop spacing, avoid over-irrigation, consider resistant varieties or fungicides.",
	},
	model.LabelRedRot: {
		Cause:       "Fungal disease caused by Colletotrichum falcatum. Often due to waterlogging or infected material.",
		Symptoms:    "Reddish discoloration of internodes, white spots, sour smell.",
		Suggestions: "Use disease-free planting material, improve drainage, apply fungicides.",
	},
	model.LabelMosaic: {
		Cause:       "Viral infection, often transmitted by aphids or contaminated tools.",
		Symptoms:    "Irregular patches of light and dark green on leaves, reduced photosynthesis.",
		Suggestions: "Control aphids, sterilize tools, use resistant varieties.",
	},
	model.LabelHealthy: {
		Cause:       "No disease detected.",
		Symptoms:    "Leaves are healthy with no visible issues.",
		Suggestions: "Maintain proper care for the plant.",
	},
	model.LabelYellow: {
		Cause:       "Potential nutrient deficiency or other minor stress factors.",
		Symptoms:    "Yellowish discoloration of leaves.",
		Suggestions: "Check soil nutrients and improve fertilization practices.",
	},
}

// KnowledgeBase 静态病害知识库，启动时构建，之后只读
type KnowledgeBase struct {
	records map[string]model.DiseaseRecord
}

func NewKnowledgeBase() *KnowledgeBase {
	records := make(map[string]model.DiseaseRecord, len(builtinDiseases))
	for label, rec := range builtinDiseases {
		records[label] = rec
	}
	return &KnowledgeBase{records: records}
}

// Lookup 查询病害说明，未找到时返回空记录和 false
func (kb *KnowledgeBase) Lookup(label string) (model.DiseaseRecord, bool) {
	rec, ok := kb.records[label]
	return rec, ok
}

// Labels 按 model.Labels 的顺序返回知识库覆盖的标签
func (kb *KnowledgeBase) Labels() []string {
	labels := make([]string, 0, len(kb.records))
	for _, l := range model.Labels {
		if _, ok := kb.records[l]; ok {
			labels = append(labels, l)
		}
	}
	return labels
}
