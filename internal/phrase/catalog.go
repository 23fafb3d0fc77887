// Package phrase implements the "common phrases" picker used to compose
// review comments from canned, categorised phrases.
package phrase

// Target is the comment a phrase belongs to.
type Target string

const (
	TargetCourse   Target = "course"
	TargetTeaching Target = "teaching"
)

type Sentiment string

const (
	Positive Sentiment = "positive"
	Negative Sentiment = "negative"
)

type Category string

// Course comment categories.
const (
	CategoryContent    Category = "content"
	CategoryWorkload   Category = "workload"
	CategoryAssessment Category = "assessment"
	CategoryOverall    Category = "overall"
)

// Teaching comment categories.
const (
	CategoryStyle         Category = "style"
	CategorySupport       Category = "support"
	CategoryOrganization  Category = "organization"
	CategoryCommunication Category = "communication"
)

// Categories returns the render order of categories for target.
func Categories(target Target) []Category {
	if target == TargetTeaching {
		return []Category{CategoryStyle, CategorySupport, CategoryOrganization, CategoryCommunication}
	}
	return []Category{CategoryContent, CategoryWorkload, CategoryAssessment, CategoryOverall}
}

// Phrase is one canned phrase with its text in every supported language.
type Phrase struct {
	ID        string
	Target    Target
	Sentiment Sentiment
	Category  Category
	Text      map[string]string
}

// TextFor returns the phrase in lang, falling back to English.
func (p Phrase) TextFor(lang string) string {
	if s, ok := p.Text[lang]; ok && s != "" {
		return s
	}
	return p.Text["en"]
}

func (p Phrase) matches(text string) bool {
	for _, s := range p.Text {
		if s == text {
			return true
		}
	}
	return false
}

var sectionLabels = map[Sentiment]map[string]string{
	Positive: {"en": "✓ Positive", "zh-TW": "✓ 優點", "zh-CN": "✓ 优点"},
	Negative: {"en": "✗ Negative", "zh-TW": "✗ 缺點", "zh-CN": "✗ 缺点"},
}

var categoryLabels = map[Category]map[string]string{
	CategoryContent:       {"en": "Content", "zh-TW": "課程內容", "zh-CN": "课程内容"},
	CategoryWorkload:      {"en": "Workload", "zh-TW": "工作量", "zh-CN": "工作量"},
	CategoryAssessment:    {"en": "Assessment", "zh-TW": "評核", "zh-CN": "评核"},
	CategoryOverall:       {"en": "Overall", "zh-TW": "整體", "zh-CN": "整体"},
	CategoryStyle:         {"en": "Teaching Style", "zh-TW": "教學風格", "zh-CN": "教学风格"},
	CategorySupport:       {"en": "Support", "zh-TW": "支援", "zh-CN": "支援"},
	CategoryOrganization:  {"en": "Organization", "zh-TW": "組織", "zh-CN": "组织"},
	CategoryCommunication: {"en": "Communication", "zh-TW": "溝通", "zh-CN": "沟通"},
}

func label(labels map[string]string, lang string) string {
	if s, ok := labels[lang]; ok {
		return s
	}
	return labels["en"]
}

func p(id string, target Target, s Sentiment, c Category, en, tc, sc string) Phrase {
	return Phrase{ID: id, Target: target, Sentiment: s, Category: c,
		Text: map[string]string{"en": en, "zh-TW": tc, "zh-CN": sc}}
}

var catalog = []Phrase{
	p("course.content.practical", TargetCourse, Positive, CategoryContent, "Content is practical and relevant", "內容實用且貼近實際", "内容实用且贴近实际"),
	p("course.content.interesting", TargetCourse, Positive, CategoryContent, "Topics are interesting", "課題有趣", "课题有趣"),
	p("course.content.outdated", TargetCourse, Negative, CategoryContent, "Materials feel outdated", "教材有點過時", "教材有点过时"),
	p("course.content.shallow", TargetCourse, Negative, CategoryContent, "Content lacks depth", "內容不夠深入", "内容不够深入"),
	p("course.workload.manageable", TargetCourse, Positive, CategoryWorkload, "Workload is manageable", "工作量適中", "工作量适中"),
	p("course.workload.heavy", TargetCourse, Negative, CategoryWorkload, "Workload is heavy", "工作量繁重", "工作量繁重"),
	p("course.workload.deadlines", TargetCourse, Negative, CategoryWorkload, "Deadlines are tight", "死線緊迫", "截止日期紧迫"),
	p("course.assessment.fair", TargetCourse, Positive, CategoryAssessment, "Assessment is fair", "評核公平", "评核公平"),
	p("course.assessment.clear", TargetCourse, Positive, CategoryAssessment, "Rubrics are clear", "評分準則清晰", "评分准则清晰"),
	p("course.assessment.harsh", TargetCourse, Negative, CategoryAssessment, "Grading is harsh", "給分嚴格", "给分严格"),
	p("course.overall.recommend", TargetCourse, Positive, CategoryOverall, "Would recommend this course", "推薦修讀", "推荐修读"),
	p("course.overall.avoid", TargetCourse, Negative, CategoryOverall, "Would not take it again", "不會再修", "不会再修"),

	p("teaching.style.engaging", TargetTeaching, Positive, CategoryStyle, "Lectures are engaging", "講課生動", "讲课生动"),
	p("teaching.style.monotone", TargetTeaching, Negative, CategoryStyle, "Lectures are monotonous", "講課沉悶", "讲课沉闷"),
	p("teaching.support.helpful", TargetTeaching, Positive, CategorySupport, "Helpful outside class", "課後樂於幫助", "课后乐于帮助"),
	p("teaching.support.unreachable", TargetTeaching, Negative, CategorySupport, "Hard to reach for help", "難以聯絡求助", "难以联络求助"),
	p("teaching.organization.structured", TargetTeaching, Positive, CategoryOrganization, "Well structured lessons", "課堂組織有條理", "课堂组织有条理"),
	p("teaching.organization.messy", TargetTeaching, Negative, CategoryOrganization, "Lessons feel disorganized", "課堂欠缺組織", "课堂欠缺组织"),
	p("teaching.communication.clear", TargetTeaching, Positive, CategoryCommunication, "Explains concepts clearly", "解釋清晰", "解释清晰"),
	p("teaching.communication.slow", TargetTeaching, Negative, CategoryCommunication, "Slow to answer emails", "回覆電郵慢", "回复邮件慢"),
}

// Catalog returns the phrases for target in catalog order.
func Catalog(target Target) []Phrase {
	var out []Phrase
	for _, ph := range catalog {
		if ph.Target == target {
			out = append(out, ph)
		}
	}
	return out
}

// Lookup finds a phrase by id.
func Lookup(id string) (Phrase, bool) {
	for _, ph := range catalog {
		if ph.ID == id {
			return ph, true
		}
	}
	return Phrase{}, false
}

func lookupText(target Target, text string) (Phrase, bool) {
	for _, ph := range catalog {
		if ph.Target == target && ph.matches(text) {
			return ph, true
		}
	}
	return Phrase{}, false
}
