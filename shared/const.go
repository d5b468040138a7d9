package shared

const (
	LearnerID   = "learner_id"
	LearnerRole = "learner_role"

	RoleLearner = "learner"
	RoleAdmin   = "admin"
	RoleService = "service"

	EndpointLessonComplete   = "lesson_complete"
	EndpointProgressRead     = "progress_read"
	EndpointStructurePublish = "structure_publish"

	HeaderServiceKey = "X-Service-Key"
)
