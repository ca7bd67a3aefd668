// Package register provides pluggable user registration and identity
// verification: account creation, optional one or two step activation over an
// email/SMS channel, signed tokens for verification, approbation, and password
// recovery, plus a small JSON surface to complete those flows.
//
// Verification lifecycle:
//   - Users are created disabled (unless the configured Mode is ModeNone) and
//     move created -> verified -> registered. VerifiedAt is set when the owner
//     of the preferred channel proves receipt of a verification token;
//     RegisteredAt when the account completes every required step. Both
//     timestamps are write-once and enforced by Registrar.UpdateUser.
//   - Registrar centralizes the transition table, token minting, persistence,
//     and the pre-create/pre-update hook chain. Token driven operations return
//     an Outcome rather than an error: OutcomeAbsent when the subject user does
//     not exist, OutcomeRejected when the transition does not apply, and
//     OutcomeApplied on success.
//
// Tokens:
//   - TokenCodec turns the three token variants (VerificationToken,
//     ApprobationToken, RecoveryToken) into signed, self-contained strings and
//     back. Decode failures collapse to "absent"; only structurally invalid
//     encode inputs surface as errors, since those are programmer mistakes.
//   - A token remains decodable while unexpired. Replay is made harmless by the
//     user-state check inside each transition, not by revocation.
package register
