package screening

import "fmt"

const recruiterSystem = "Act as an expert HR Recruiter. You evaluate resumes against job descriptions objectively and consistently."

const hrManagerSystem = "You are an expert HR Manager tasked with analyzing an interview transcript."

func resumePrompt(jobDescription string) string {
	return fmt.Sprintf(`**Job Description:**
%s

**Instructions:**
Analyze the candidate's resume, provided as a file, against the job description.
Extract the relevant information from the resume and provide a detailed evaluation in the structured JSON format requested.
The overall score should be an integer between 0 and 100.`, jobDescription)
}

func interviewPrompt(jobRole, history string) string {
	return fmt.Sprintf(`**Context:**
The candidate was interviewed for the role of: **%s**.

**Interview Transcript:**
%s

**Instructions:**
Based on the transcript, evaluate the candidate's suitability for the role.
Provide a detailed analysis in the structured JSON format requested.
The overall score should be an integer between 0 and 100, reflecting their qualifications, communication skills, and fit for the role.
The recommendation should be a clear action item for the recruiter.`, jobRole, history)
}
