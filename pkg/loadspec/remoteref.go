package loadspec

import "github.com/architect-io/zenboard/pkg/zfile"

// toRemoteRef normalizes a Github/Gitlab Spec into the zfile package's
// (host, repo, rev) shape, which is all a Provider needs to fetch it —
// Gitlab's project_path takes the place of Github's user/repo pair.
func toRemoteRef(s Spec) zfile.RemoteRef {
	switch s.Kind {
	case KindGithub:
		return zfile.RemoteRef{Host: "github.com", Repo: s.User + "/" + s.Repo, Rev: s.Rev}
	case KindGitlab:
		return zfile.RemoteRef{Host: "gitlab.com", Repo: s.ProjectPath, Rev: s.Rev}
	default:
		return zfile.RemoteRef{}
	}
}
