package activities

import "go.temporal.io/sdk/worker"

func Register(w worker.Worker, a *Activities) {
	w.RegisterActivity(a.ComputeDocumentIDActivity)
	w.RegisterActivity(a.BuildStudyActivity)
	w.RegisterActivity(a.WriteStudyArtifactsActivity)
	w.RegisterActivity(a.PersistStudyActivity)
	w.RegisterActivity(a.UpdateRunStatusActivity)
}
