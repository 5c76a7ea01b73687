package github

// Every connection is requested 100 nodes at a time, the GitHub maximum.
// Connections that share a request carry an @include guard so that an
// exhausted connection is left out of the follow-up requests.

const repositoryFields = `
fragment RepositoryFields on Repository {
	owner {
		login
	}
	name
	defaultBranchRef {
		name
	}
	createdAt
	updatedAt
}
`

const viewerRepositoriesQuery = `
query ViewerRepositories($rCursor: String, $oCursor: String, $withRepos: Boolean!, $withOrgs: Boolean!) {
	viewer {
		repositories(first: 100, after: $rCursor) @include(if: $withRepos) {
			pageInfo {
				hasNextPage
				endCursor
			}
			nodes {
				...RepositoryFields
			}
		}
		organizations(first: 100, after: $oCursor) @include(if: $withOrgs) {
			pageInfo {
				hasNextPage
				endCursor
			}
			nodes {
				login
			}
		}
	}
}
` + repositoryFields

const organizationRepositoriesQuery = `
query OrganizationRepositories($login: String!, $after: String) {
	organization(login: $login) {
		repositories(first: 100, after: $after) {
			pageInfo {
				hasNextPage
				endCursor
			}
			nodes {
				...RepositoryFields
			}
		}
	}
}
` + repositoryFields

const repositoryQuery = `
query Repository($owner: String!, $name: String!) {
	repository(owner: $owner, name: $name) {
		...RepositoryFields
	}
}
` + repositoryFields

const repositoryIssuesQuery = `
query RepositoryIssues($owner: String!, $name: String!, $after: String) {
	repository(owner: $owner, name: $name) {
		...RepositoryFields
		issues(first: 100, after: $after) {
			pageInfo {
				hasNextPage
				endCursor
			}
			nodes {
				number
				createdAt
				closedAt
			}
		}
	}
}
` + repositoryFields

const issueTimelineQuery = `
query IssueTimeline($owner: String!, $name: String!, $number: Int!, $after: String) {
	repository(owner: $owner, name: $name) {
		issue(number: $number) {
			timelineItems(first: 100, after: $after, itemTypes: [CONNECTED_EVENT, DISCONNECTED_EVENT]) {
				pageInfo {
					hasNextPage
					endCursor
				}
				nodes {
					__typename
					... on ConnectedEvent {
						subject {
							... on PullRequest {
								number
							}
						}
						source {
							... on PullRequest {
								number
							}
						}
					}
					... on DisconnectedEvent {
						subject {
							... on PullRequest {
								number
							}
						}
						source {
							... on PullRequest {
								number
							}
						}
					}
				}
			}
		}
	}
}
`

const repositoryPullRequestsQuery = `
query RepositoryPullRequests($owner: String!, $name: String!, $after: String) {
	repository(owner: $owner, name: $name) {
		...RepositoryFields
		pullRequests(first: 100, after: $after) {
			pageInfo {
				hasNextPage
				endCursor
			}
			nodes {
				number
				createdAt
				closedAt
				mergedAt
				headRefName
				headRefOid
				baseRefName
				baseRefOid
			}
		}
	}
}
` + repositoryFields

const pullRequestLinksQuery = `
query PullRequestLinks($owner: String!, $name: String!, $number: Int!, $iCursor: String, $cCursor: String, $withIssues: Boolean!, $withCommits: Boolean!) {
	repository(owner: $owner, name: $name) {
		pullRequest(number: $number) {
			closingIssuesReferences(first: 100, after: $iCursor) @include(if: $withIssues) {
				pageInfo {
					hasNextPage
					endCursor
				}
				nodes {
					number
					createdAt
					closedAt
					repository {
						...RepositoryFields
					}
				}
			}
			commits(first: 100, after: $cCursor) @include(if: $withCommits) {
				pageInfo {
					hasNextPage
					endCursor
				}
				nodes {
					commit {
						oid
						authoredDate
						committedDate
					}
				}
			}
		}
	}
}
` + repositoryFields

const repositoryRefsQuery = `
query RepositoryRefs($owner: String!, $name: String!, $after: String) {
	repository(owner: $owner, name: $name) {
		...RepositoryFields
		refs(first: 100, refPrefix: "refs/heads/", after: $after) {
			pageInfo {
				hasNextPage
				endCursor
			}
			nodes {
				name
			}
		}
	}
}
` + repositoryFields

const refHistoryQuery = `
query RefHistory($owner: String!, $name: String!, $ref: String!, $after: String) {
	repository(owner: $owner, name: $name) {
		ref(qualifiedName: $ref) {
			target {
				... on Commit {
					history(first: 100, after: $after) {
						pageInfo {
							hasNextPage
							endCursor
						}
						nodes {
							oid
							authoredDate
							committedDate
						}
					}
				}
			}
		}
	}
}
`
