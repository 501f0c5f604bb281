// Package reconcile folds a template configuration file into a user
// configuration file.
//
// A run is linear: load the template, load the user file, pick the merge
// policy from the template's kind, merge in memory and, only if something
// was added, back up the user file and write the result. Each run ends in
// exactly one [Outcome]:
//
//   - OutcomeCreated: the user file did not exist; the template was copied
//     byte for byte, without being parsed first.
//   - OutcomeReplaced: the user file was not a JSON object; it was backed up
//     and replaced with the template.
//   - OutcomeUpToDate: nothing to add; nothing written.
//   - OutcomeUpgraded: members were added; the user file was backed up and
//     rewritten.
//
// A missing template is fatal ([ErrTemplateNotFound]). So is a malformed
// one ([ErrInvalidTemplate]) once there is a user file to merge into. Both
// leave every file untouched.
//
// [WithReplaceHook] lets the caller announce a replacement before the user
// file is backed up.
package reconcile
