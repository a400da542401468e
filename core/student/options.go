package student

// Option is one choice of the profile prompt.
type Option struct {
	Text  string `json:"text"`
	Value string `json:"value"`
}

type Options struct {
	Interests []Option `json:"interests"`
	Skills    []Option `json:"skills"`
	Goals     []Option `json:"goals"`
}

var (
	InterestOptions = []Option{
		{Text: "Programming", Value: "programming"},
		{Text: "Web Development", Value: "web-dev"},
		{Text: "Artificial Intelligence", Value: "ai"},
		{Text: "Machine Learning", Value: "ml"},
		{Text: "Data Science", Value: "data-science"},
		{Text: "Cybersecurity", Value: "cybersecurity"},
		{Text: "Mobile Development", Value: "mobile-dev"},
		{Text: "Cloud Computing", Value: "cloud"},
		{Text: "DevOps", Value: "devops"},
	}

	SkillOptions = []Option{
		{Text: "Python", Value: "python"},
		{Text: "JavaScript", Value: "javascript"},
		{Text: "Java", Value: "java"},
		{Text: "C++", Value: "cpp"},
		{Text: "React", Value: "react"},
		{Text: "Node.js", Value: "nodejs"},
		{Text: "SQL", Value: "sql"},
		{Text: "Git", Value: "git"},
		{Text: "Docker", Value: "docker"},
	}

	GoalOptions = []Option{
		{Text: "Learn New Technologies", Value: "learn-tech"},
		{Text: "Build Projects", Value: "build-projects"},
		{Text: "Get Internship", Value: "internship"},
		{Text: "Improve Problem Solving", Value: "problem-solving"},
		{Text: "Master Programming Language", Value: "master-lang"},
		{Text: "Contribute to Open Source", Value: "open-source"},
		{Text: "Network with Peers", Value: "networking"},
		{Text: "Research Opportunities", Value: "research"},
	}
)

// ProfileOptions returns every catalogue of the profile prompt.
func ProfileOptions() Options {
	return Options{Interests: InterestOptions, Skills: SkillOptions, Goals: GoalOptions}
}

func hasOption(opts []Option, value string) bool {
	for _, o := range opts {
		if o.Value == value {
			return true
		}
	}
	return false
}
