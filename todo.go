/*
	Project: Somo - course modules & quizzes
*/
package somo

/*
TODO: events: move from redis pub/sub to a redis stream with a consumer group, so events published while an API instance is down are not lost
TODO: quiz: link attempts to module steps, so grading a step's quiz completes the step
TODO: admin: loadmodule -dir to load every YAML file of a directory in one go

------------------------------------ Version X ----------------------------------------
- partial credit graders (MULTIPLE_CHOICE with several right options)
- per-learner module assignment
*/
